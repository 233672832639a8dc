package main

import (
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"runtime"

	"visualcheck/baseline"
	"visualcheck/capture"
	"visualcheck/comparator"
	"visualcheck/config"
	"visualcheck/database"
	"visualcheck/imaging"
	"visualcheck/logging"
	"visualcheck/matcher"
	"visualcheck/runner"
	"visualcheck/signalhandler"
	"visualcheck/tester"
	"visualcheck/types"
	"visualcheck/utils"

	"gocv.io/x/gocv"
)

func main() {
	// Set up proper signal handling and a CPU budget that leaves headroom
	// for OpenCV's own threads
	signalhandler.SetupHandler()
	runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

	args := utils.ParseArguments()
	command, hasCommand := args["command"]

	// Load config, allowing an explicit path override
	configPath := utils.GetDefaultConfigPath()
	if custom, ok := args["config"]; ok && custom != "" {
		configPath = custom
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Warning: Failed to load config %s: %v\n", configPath, err)
	}
	applyFlagOverrides(cfg, args)

	// Setup debug logging if enabled
	debugMode := false
	if _, ok := args["debug"]; ok {
		debugMode = true
		logPath := "visualcheck.log"
		if customLogPath, ok := args["logfile"]; ok && customLogPath != "" {
			logPath = customLogPath
		}
		if err := logging.SetupLogger(logPath); err != nil {
			fmt.Printf("Warning: Failed to setup logging: %v\n", err)
		} else {
			fmt.Printf("Debug mode enabled. Logging to: %s\n", logPath)
		}
		defer logging.CloseLogger()
	}
	cfg.Debug = cfg.Debug || debugMode

	if !hasCommand {
		utils.PrintUsage()
		os.Exit(1)
	}

	switch command {
	case "baseline":
		handleBaselineCommand(args, cfg)
	case "compare":
		handleCompareCommand(args, cfg)
	case "verify":
		handleVerifyCommand(args, cfg)
	case "find":
		handleFindCommand(args, cfg)
	case "run":
		handleRunCommand(args, cfg)
	case "stats":
		handleStatsCommand(args, cfg)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		utils.PrintUsage()
		os.Exit(1)
	}
}

func applyFlagOverrides(cfg *config.Config, args map[string]string) {
	if dir, ok := args["baseline-dir"]; ok && dir != "" {
		cfg.BaselineDir = dir
	}
	if dir, ok := args["report-dir"]; ok && dir != "" {
		cfg.ReportDir = dir
	}
	if path, ok := args["index"]; ok && path != "" {
		cfg.IndexPath = path
	}
	if value, ok := args["threshold"]; ok && value != "" {
		if parsed, err := utils.ParseThreshold(value); err == nil {
			cfg.SimilarityThreshold = parsed
		} else {
			fmt.Printf("Warning: %v\n", err)
		}
	}
	_ = cfg.Validate()
}

// openStore builds the baseline store and attaches the sqlite index.
func openStore(cfg *config.Config) *baseline.Store {
	store, err := baseline.NewStore(cfg.BaselineDir)
	if err != nil {
		log.Fatalf("Error opening baseline store: %v", err)
	}
	if err := store.SetHashSize(cfg.HashSize); err != nil {
		log.Fatalf("Error applying hash size: %v", err)
	}
	if cfg.IndexPath != "" {
		index, err := database.Init(cfg.IndexPath)
		if err != nil {
			fmt.Printf("Warning: baseline index unavailable: %v\n", err)
		} else {
			store.AttachIndex(index)
		}
	}
	return store
}

func newTester(cfg *config.Config, store *baseline.Store) *tester.VisualTester {
	cmp, err := comparator.New(cfg.SimilarityThreshold)
	if err != nil {
		log.Fatalf("Error creating comparator: %v", err)
	}
	if err := cmp.SetDiffParams(cfg.DiffThreshold, cfg.MinDiffArea); err != nil {
		log.Fatalf("Error applying diff parameters: %v", err)
	}
	t := tester.New(store, cmp, capture.NewScreenProvider())
	if err := t.SetHashSize(cfg.HashSize); err != nil {
		log.Fatalf("Error applying hash size: %v", err)
	}
	if err := t.SetHashTolerance(cfg.HashTolerance); err != nil {
		log.Fatalf("Error applying hash tolerance: %v", err)
	}
	return t
}

func loadImageOrDie(path string) gocv.Mat {
	img, err := imaging.Load(path)
	if err != nil {
		log.Fatalf("Error loading image %s: %v", path, err)
	}
	return img
}

func handleBaselineCommand(args map[string]string, cfg *config.Config) {
	name := args["name"]
	if name == "" {
		fmt.Println("Error: Missing baseline name (use --name=NAME)")
		os.Exit(1)
	}

	store := openStore(cfg)
	t := newTester(cfg, store)

	switch {
	case args["image"] != "":
		img := loadImageOrDie(args["image"])
		defer img.Close()
		if err := store.Capture(name, img); err != nil {
			log.Fatalf("Error capturing baseline %q: %v", name, err)
		}
	case args["region"] != "":
		x, y, w, h, err := utils.ParseRect(args["region"])
		if err != nil {
			log.Fatalf("Error parsing --region: %v", err)
		}
		if err := t.CaptureRegionBaseline(name, x, y, w, h); err != nil {
			log.Fatalf("Error capturing region baseline %q: %v", name, err)
		}
	case args["screen"] == "true":
		if err := t.CaptureBaseline(name); err != nil {
			log.Fatalf("Error capturing screen baseline %q: %v", name, err)
		}
	default:
		fmt.Println("Error: Provide --image=PATH, --screen or --region=X,Y,W,H")
		os.Exit(1)
	}

	fmt.Printf("Baseline %q stored under %s\n", name, cfg.BaselineDir)
}

func handleCompareCommand(args map[string]string, cfg *config.Config) {
	name, imagePath := args["name"], args["image"]
	if name == "" || imagePath == "" {
		fmt.Println("Error: compare needs --name=NAME and --image=PATH")
		os.Exit(1)
	}

	store := openStore(cfg)
	t := newTester(cfg, store)

	current := loadImageOrDie(imagePath)
	defer current.Close()

	opts := comparator.Options{}
	if args["resize"] == "true" {
		opts.Resize = true
	}
	if roi, ok := args["roi"]; ok && roi != "" {
		x, y, w, h, err := utils.ParseRect(roi)
		if err != nil {
			log.Fatalf("Error parsing --roi: %v", err)
		}
		rect := image.Rect(x, y, x+w, y+h)
		opts.ROI = &rect
	}

	result, err := t.CompareWithBaseline(name, current, opts)
	if err != nil {
		// A shape mismatch is a distinct failure, never a low score.
		if errors.Is(err, types.ErrShapeMismatch) {
			log.Fatalf("Shape mismatch comparing %s against baseline %q: %v", imagePath, name, err)
		}
		log.Fatalf("Error comparing %s against baseline %q: %v", imagePath, name, err)
	}
	defer result.DiffImage.Close()

	fmt.Printf("Match: %v\n", result.Match)
	fmt.Printf("Similarity: %.4f\n", result.Similarity)
	fmt.Printf("Difference regions: %d\n", len(result.Differences))
	for i, region := range result.Differences {
		fmt.Printf("  %d. at (%d,%d) size %dx%d area %d\n", i+1,
			region.Location.X, region.Location.Y, region.Size.X, region.Size.Y, region.Area)
	}

	if reportDir, ok := args["report"]; ok && reportDir != "" {
		if err := t.GenerateReport(name, current, reportDir); err != nil {
			log.Fatalf("Error writing report for %q: %v", name, err)
		}
		fmt.Printf("Report written to %s\n", reportDir)
	}
}

func handleVerifyCommand(args map[string]string, cfg *config.Config) {
	name, imagePath := args["name"], args["image"]
	if name == "" || imagePath == "" {
		fmt.Println("Error: verify needs --name=NAME and --image=PATH")
		os.Exit(1)
	}
	if tol, ok := args["tolerance"]; ok && tol != "" {
		fmt.Sscanf(tol, "%d", &cfg.HashTolerance)
	}

	store := openStore(cfg)
	t := newTester(cfg, store)

	current := loadImageOrDie(imagePath)
	defer current.Close()

	ok, err := t.VerifyHash(name, current)
	if err != nil {
		log.Fatalf("Error verifying %s against baseline %q: %v", imagePath, name, err)
	}
	fmt.Printf("Fingerprint match: %v\n", ok)
	if !ok {
		os.Exit(1)
	}
}

func handleFindCommand(args map[string]string, cfg *config.Config) {
	imagePath, templatePath := args["image"], args["template"]
	if imagePath == "" || templatePath == "" {
		fmt.Println("Error: find needs --image=PATH and --template=PATH")
		os.Exit(1)
	}

	img := loadImageOrDie(imagePath)
	defer img.Close()
	tmpl := loadImageOrDie(templatePath)
	defer tmpl.Close()

	opts := matcher.Options{Threshold: cfg.TemplateThreshold}
	if value, ok := args["threshold"]; ok && value != "" {
		if parsed, err := utils.ParseThreshold(value); err == nil {
			opts.Threshold = parsed
		}
	}
	if value, ok := args["overlap"]; ok && value != "" {
		fmt.Sscanf(value, "%f", &opts.Overlap)
	}

	if args["all"] == "true" {
		matches, err := matcher.FindAll(img, tmpl, opts)
		if err != nil {
			log.Fatalf("Error searching %s for %s: %v", imagePath, templatePath, err)
		}
		if len(matches) == 0 {
			fmt.Println("No matches found.")
			return
		}
		for i, m := range matches {
			fmt.Printf("%d. center (%d,%d) score %.4f\n", i+1, m.Location.X, m.Location.Y, m.Score)
		}
		return
	}

	match, err := matcher.FindOne(img, tmpl, opts)
	if err != nil {
		log.Fatalf("Error searching %s for %s: %v", imagePath, templatePath, err)
	}
	if match == nil {
		fmt.Println("No match found.")
		os.Exit(1)
	}
	fmt.Printf("Best match: center (%d,%d) score %.4f\n", match.Location.X, match.Location.Y, match.Score)
}

func handleRunCommand(args map[string]string, cfg *config.Config) {
	folder := args["folder"]
	if folder == "" {
		fmt.Println("Error: Missing folder path (use --folder=PATH)")
		os.Exit(1)
	}

	store := openStore(cfg)
	cmp, err := comparator.New(cfg.SimilarityThreshold)
	if err != nil {
		log.Fatalf("Error creating comparator: %v", err)
	}
	if err := cmp.SetDiffParams(cfg.DiffThreshold, cfg.MinDiffArea); err != nil {
		log.Fatalf("Error applying diff parameters: %v", err)
	}

	workers := 0
	if value, ok := args["workers"]; ok && value != "" {
		fmt.Sscanf(value, "%d", &workers)
	}

	stats, err := runner.Run(store, cmp, runner.Options{
		CurrentDir: folder,
		ReportDir:  cfg.ReportDir,
		DebugMode:  cfg.Debug,
		MaxWorkers: workers,
	})
	if err != nil {
		log.Fatalf("Error running batch comparison: %v", err)
	}

	for _, result := range stats.Results {
		if result.Error != nil {
			fmt.Printf("  ERROR %s: %v\n", result.Name, result.Error)
		} else if !result.Match {
			fmt.Printf("  MISMATCH %s (similarity %.4f, %d regions)\n",
				result.Name, result.Similarity, result.Regions)
		}
	}
	if stats.Mismatched > 0 || stats.Errors > 0 {
		os.Exit(1)
	}
}

func handleStatsCommand(args map[string]string, cfg *config.Config) {
	index, err := database.Init(cfg.IndexPath)
	if err != nil {
		log.Fatalf("Error opening baseline index: %v", err)
	}
	defer index.Close()

	stats, err := index.Stats()
	if err != nil {
		log.Fatalf("Error reading index stats: %v", err)
	}
	fmt.Printf("Indexed baselines: %d\n", stats.TotalBaselines)
	fmt.Printf("Unique fingerprints: %d\n", stats.UniqueFingerprints)

	infos, err := index.ListBaselines()
	if err != nil {
		log.Fatalf("Error listing baselines: %v", err)
	}
	for _, info := range infos {
		fmt.Printf("  %s (%dx%d, updated %s)\n", info.Name, info.Width, info.Height, info.UpdatedAt)
	}
}
