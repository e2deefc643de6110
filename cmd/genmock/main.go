// Command genmock writes synthetic river level and INMET station files whose
// level responds to the rainfall of the preceding days. The output feeds local
// runs of cmd/etl in file mode.
//
// Usage:
//
//	go run ./cmd/genmock -out data -from 2024-01-01 -to 2025-06-30 -lag 4
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
)

// inmetPreamble mirrors the station metadata block of INMET yearly files.
var inmetPreamble = [][]string{
	{"REGIAO:", "S"},
	{"UF:", "RS"},
	{"ESTACAO:", "PORTO ALEGRE"},
	{"CODIGO (WMO):", "A801"},
	{"LATITUDE:", "-30,05"},
	{"LONGITUDE:", "-51,17"},
	{"ALTITUDE:", "46,97"},
	{"DATA DE FUNDACAO:", "22/09/00"},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "data", "output directory")
	from := flag.String("from", "2024-01-01", "first day to generate")
	to := flag.String("to", "2025-06-30", "last day to generate")
	lag := flag.Int("lag", 4, "days of rainfall the river level responds to")
	seed := flag.Uint64("seed", 1941, "random seed")
	flag.Parse()

	r, err := parseRange(*from, *to)
	if err != nil {
		return err
	}
	if *lag < 1 {
		return fmt.Errorf("lag must be at least 1, got %d", *lag)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed>>1))
	hourly := rainfall(rng, r)
	daily := dailyTotals(hourly, r)

	riverPath := filepath.Join(*outDir, "river_level.csv")
	if err := writeFile(riverPath, func(w io.Writer) error {
		return writeRiver(w, rng, r, daily, *lag)
	}); err != nil {
		return err
	}
	log.Printf("wrote %s (%d days)", riverPath, len(daily))

	for year := r.From.Year(); year <= r.To.Year(); year++ {
		path := filepath.Join(*outDir, fmt.Sprintf("inmet_a801_%d.csv", year))
		if err := writeFile(path, func(w io.Writer) error {
			return writeINMET(w, hourly, year)
		}); err != nil {
			return err
		}
		log.Printf("wrote %s", path)
	}
	return nil
}

func parseRange(from, to string) (domain.DateRange, error) {
	f, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("invalid -from: %w", err)
	}
	t, err := time.Parse(time.DateOnly, to)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("invalid -to: %w", err)
	}
	if t.Before(f) {
		return domain.DateRange{}, fmt.Errorf("-to %s is before -from %s", to, from)
	}
	return domain.DateRange{From: f, To: t}, nil
}

type reading struct {
	at      time.Time
	rain    float64
	missing bool
}

// rainfall simulates hourly precipitation: roughly one day in three is wet,
// with showers concentrated in a few afternoon hours. About one hour in two
// hundred is reported as missing.
func rainfall(rng *rand.Rand, r domain.DateRange) []reading {
	var out []reading
	for day := r.From; !day.After(r.To); day = day.AddDate(0, 0, 1) {
		wet := rng.Float64() < 0.33
		intensity := rng.ExpFloat64() * 2
		for h := range 24 {
			rd := reading{at: day.Add(time.Duration(h) * time.Hour)}
			switch {
			case rng.IntN(200) == 0:
				rd.missing = true
			case wet && h >= 12 && h < 20 && rng.Float64() < 0.6:
				rd.rain = float64(int(intensity*rng.Float64()*10)) / 10
			}
			out = append(out, rd)
		}
	}
	return out
}

func dailyTotals(hourly []reading, r domain.DateRange) []float64 {
	days := int(r.To.Sub(r.From).Hours()/24) + 1
	totals := make([]float64, days)
	for _, rd := range hourly {
		if rd.missing {
			continue
		}
		totals[int(rd.at.Sub(r.From).Hours()/24)] += rd.rain
	}
	return totals
}

// writeRiver emits four readings a day. The level recedes towards a base of
// 1.2 m and rises with the rain accumulated over the previous lag days.
func writeRiver(w io.Writer, rng *rand.Rand, r domain.DateRange, daily []float64, lag int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Data", "Nivel"}); err != nil {
		return err
	}
	for d := range daily {
		var acc float64
		for k := 1; k <= lag && d-k >= 0; k++ {
			acc += daily[d-k]
		}
		level := 1.2 + 0.025*acc
		day := r.From.AddDate(0, 0, d)
		for _, h := range []int{0, 6, 12, 18} {
			v := level + (rng.Float64()-0.5)*0.04
			at := day.Add(time.Duration(h)*time.Hour + 15*time.Minute)
			if err := cw.Write([]string{
				at.Format("02/01/2006 15:04"),
				domain.FormatDecimal(float64(int(v*100))/100, true) + " m",
			}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeINMET emits the rows of one calendar year in the Latin-1 station format.
func writeINMET(w io.Writer, hourly []reading, year int) error {
	cw := csv.NewWriter(charmap.ISO8859_1.NewEncoder().Writer(w))
	cw.Comma = ';'
	for _, line := range inmetPreamble {
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	header := []string{"Data", "Hora UTC", domain.INMETPrecipitationColumn, "TEMPERATURA DO AR - BULBO SECO, HORARIA (°C)"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rd := range hourly {
		if rd.at.Year() != year {
			continue
		}
		value := ""
		if !rd.missing {
			value = domain.FormatDecimal(rd.rain, true)
		}
		row := []string{
			rd.at.Format("2006/01/02"),
			strings.ReplaceAll(rd.at.Format("15:04"), ":", "") + " UTC",
			value,
			"",
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
