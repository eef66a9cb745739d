// Command matchtest matches one still image against a catalog directory and
// reports the accepted correspondence count for every entry.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"boardgame-spotter/internal/catalog"
	"boardgame-spotter/internal/config"
	"boardgame-spotter/internal/features"
	boximage "boardgame-spotter/internal/image"
	"boardgame-spotter/internal/match"
	"boardgame-spotter/internal/overlay"

	"gocv.io/x/gocv"
)

func main() {
	catalogDir := flag.String("catalog", "", "Directory of reference box images")
	imagePath := flag.String("image", "", "Path to query image")
	outPath := flag.String("o", "", "Write the match overlay to this path")
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	if *catalogDir == "" || *imagePath == "" {
		fmt.Println("Usage: matchtest -catalog <dir> -image <path> [-o overlay.jpg] [-config f.yaml]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ex, err := features.NewExtractor(cfg.FeatureOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create extractor: %v\n", err)
		os.Exit(1)
	}
	defer ex.Close()

	start := time.Now()
	cat, err := catalog.Build(*catalogDir, ex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build catalog: %v\n", err)
		os.Exit(1)
	}
	defer cat.Close()
	fmt.Printf("Catalog: %d entries, %d features (%v)\n",
		cat.Len(), cat.FeatureCount(), time.Since(start).Round(time.Millisecond))

	query, err := boximage.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	defer query.Close()
	fmt.Printf("Query: %s %dx%d pixels\n", *imagePath, query.Cols(), query.Rows())

	searcher, err := match.NewSearcher(cfg.SearchMethod(), cfg.Detector())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create searcher: %v\n", err)
		os.Exit(1)
	}
	defer searcher.Close()

	opts := cfg.MatchOptions()
	m := match.New(ex, searcher, opts)
	fmt.Printf("\nDetector: %s  Search: %s  Ratio: %.2f  Min support: %d\n",
		cfg.Detector(), cfg.SearchMethod(), opts.Ratio, opts.MinSupport)

	start = time.Now()
	ev := m.Evaluate(query, cat)
	elapsed := time.Since(start)
	fmt.Printf("Query features: %d (%v)\n\n", ev.QueryFeatures, elapsed.Round(time.Millisecond))

	fmt.Printf("%-40s %8s\n", "Entry", "Matches")
	fmt.Println(strings.Repeat("-", 49))
	for i, s := range ev.Scores {
		mark := ""
		if i == ev.BestIndex {
			mark = "  <- best"
		}
		fmt.Printf("%-40s %8d%s\n", s.ID, s.Count, mark)
	}

	if ev.Best == nil {
		fmt.Printf("\nNo confident match (need more than %d)\n", opts.MinSupport)
	} else {
		fmt.Printf("\nMatched %s: %d correspondences, mean distance %.1f, mean ratio %.3f\n",
			ev.Best.Entry.ID, ev.Best.Count, ev.Best.MeanDistance, ev.Best.MeanRatio)
	}

	if *outPath == "" {
		return
	}
	out := overlay.NewRenderer(cfg.OverlayOptions()).Render(query, ev.Best)
	defer out.Close()
	if ok := gocv.IMWrite(*outPath, out); !ok {
		fmt.Fprintf(os.Stderr, "Failed to write %s\n", *outPath)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *outPath)
}
