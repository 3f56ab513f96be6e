package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	linac "github.com/iwtcode/icomService"
	"github.com/iwtcode/icomService/pkg/converter"
	"github.com/joho/godotenv"
)

type beamSummary struct {
	Beam      int     `json:"beam"`
	Name      string  `json:"name"`
	Technique string  `json:"technique"`
	MU        float64 `json:"mu"`
	Segments  int     `json:"segments"`
	Path      string  `json:"path"`
}

// runStep конвертирует один план. Ошибка отдельного пучка не прерывает остальные.
func runStep(path, outDir string) bool {
	log.Printf("--- Конвертация: %s ---", path)

	res, err := converter.ConvertFile(path, outDir)
	if err != nil {
		log.Printf("Ошибка чтения плана %s: %v", path, err)
		return false
	}

	summary := make([]beamSummary, 0, len(res.Files))
	for _, f := range res.Files {
		summary = append(summary, beamSummary{
			Beam:      f.BeamNumber,
			Name:      f.BeamName,
			Technique: f.Technique.String(),
			MU:        f.TotalMU,
			Segments:  len(f.Segments),
			Path:      f.Path,
		})
	}
	printAsJSON(path, summary)

	for _, e := range res.Failures {
		log.Printf("Пучок пропущен: %v", e)
	}
	fmt.Println("==================================================")
	return res.Err() == nil
}

func main() {
	outDir := flag.String("out", "", "каталог для EFS файлов (по умолчанию EFS_OUTPUT_DIR или каталог плана)")
	flag.Parse()

	if err := godotenv.Load("./.env"); err != nil {
		log.Printf("Warning: Could not load .env file. Using default values or environment variables: %v", err)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: dcm2efs [-out DIR] plan.dcm...")
		os.Exit(2)
	}

	cfg := linac.Load()
	if *outDir == "" {
		*outDir = cfg.OutputDir
	}

	ok := true
	for _, path := range flag.Args() {
		if !runStep(path, *outDir) {
			ok = false
		}
	}
	if !ok {
		os.Exit(1)
	}
	log.Println("Конвертация завершена.")
}

// printAsJSON выводит данные в JSON
func printAsJSON(name string, data interface{}) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		log.Printf("Ошибка маршалинга JSON для %s: %v", name, err)
		return
	}
	fmt.Printf("--- %s ---\n%s\n", name, string(jsonData))
}
