package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var commands = []string{"baseline", "compare", "verify", "find", "run", "stats"}

// ParseArguments converts command-line arguments into a map of flags and values
func ParseArguments() map[string]string {
	args := make(map[string]string)

	// First, identify the command
	command := ""
	commandIndex := -1
	for i := 1; i < len(os.Args); i++ {
		for _, c := range commands {
			if os.Args[i] == c {
				command = c
				commandIndex = i
				break
			}
		}
		if command != "" {
			break
		}
	}

	if command != "" {
		args["command"] = command
	}

	// Process all arguments, skipping the command
	for i := 1; i < len(os.Args); i++ {
		if i == commandIndex {
			continue
		}

		arg := os.Args[i]

		// Handle flags with equals sign (--key=value)
		if strings.HasPrefix(arg, "--") && strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			flagName := strings.TrimPrefix(parts[0], "--")
			args[flagName] = parts[1]
			continue
		}

		// Handle flags without equals sign (--key value)
		if strings.HasPrefix(arg, "--") {
			flagName := strings.TrimPrefix(arg, "--")

			if i+1 >= len(os.Args) || strings.HasPrefix(os.Args[i+1], "--") {
				args[flagName] = "true"
			} else {
				args[flagName] = os.Args[i+1]
				i++
			}
		}
	}

	return args
}

// GetDefaultConfigPath returns the default path for the config file
func GetDefaultConfigPath() string {
	exePath, err := os.Executable()
	if err != nil {
		return "visualcheck.json"
	}
	return filepath.Join(filepath.Dir(exePath), "visualcheck.json")
}

// PrintUsage outputs the command-line usage instructions
func PrintUsage() {
	fmt.Printf("Usage:\n")
	fmt.Printf("  %s baseline --name=NAME (--image=PATH | --screen | --region=X,Y,W,H) [--baseline-dir=PATH] [--index=PATH]\n", os.Args[0])
	fmt.Printf("  %s compare --name=NAME --image=PATH [--threshold=VALUE] [--resize] [--roi=X,Y,W,H] [--report=DIR]\n", os.Args[0])
	fmt.Printf("  %s verify --name=NAME --image=PATH [--tolerance=N]\n", os.Args[0])
	fmt.Printf("  %s find --image=PATH --template=PATH [--threshold=VALUE] [--all] [--overlap=VALUE]\n", os.Args[0])
	fmt.Printf("  %s run --folder=PATH [--report-dir=PATH] [--workers=N] [--threshold=VALUE]\n", os.Args[0])
	fmt.Printf("  %s stats [--index=PATH]\n", os.Args[0])
	fmt.Printf("\nParameters:\n")
	fmt.Printf("  --name         : Baseline name (suffix optional, .png is canonical)\n")
	fmt.Printf("  --image        : Path to an image file\n")
	fmt.Printf("  --template     : Path to a template image for find\n")
	fmt.Printf("  --baseline-dir : Baseline directory (default: from config)\n")
	fmt.Printf("  --threshold    : Similarity threshold (0.0-1.0)\n")
	fmt.Printf("  --resize       : Resize baseline to match current dimensions\n")
	fmt.Printf("  --roi          : Restrict comparison to a region of interest\n")
	fmt.Printf("  --tolerance    : Allowed fingerprint Hamming distance (default: 0)\n")
	fmt.Printf("  --folder       : Folder of current screenshots for batch run\n")
	fmt.Printf("  --config       : Config file path (default: %s)\n", GetDefaultConfigPath())
	fmt.Printf("  --debug        : Enable debug mode (logs detailed information)\n")
	fmt.Printf("  --logfile      : Custom log file path (default: visualcheck.log)\n")
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  %s baseline --name=login-page --image=shots/login.png\n", os.Args[0])
	fmt.Printf("  %s compare --name=login-page --image=shots/login-now.png --threshold=0.95\n", os.Args[0])
	fmt.Printf("  %s run --folder=shots/current --report-dir=reports\n", os.Args[0])
}

// ParseThreshold parses and validates the threshold value from string
func ParseThreshold(thresholdStr string) (float64, error) {
	parsedThreshold, err := strconv.ParseFloat(thresholdStr, 64)
	if err != nil || parsedThreshold < 0 || parsedThreshold > 1 {
		return 0.95, fmt.Errorf("invalid threshold value '%s', using default (0.95)", thresholdStr)
	}
	return parsedThreshold, nil
}

// ParseRect parses an "x,y,w,h" flag value into four ints
func ParseRect(value string) (x, y, w, h int, err error) {
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("expected X,Y,W,H, got %q", value)
	}
	nums := make([]int, 4)
	for i, part := range parts {
		nums[i], err = strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid rect component %q", part)
		}
	}
	return nums[0], nums[1], nums[2], nums[3], nil
}
