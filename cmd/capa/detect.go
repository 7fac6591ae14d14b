package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/HerbHall/capa/internal/capa"
	"github.com/HerbHall/capa/internal/config"
	"github.com/HerbHall/capa/internal/server"
	"github.com/HerbHall/capa/pkg/anomaly"
	"github.com/spf13/cobra"
)

type detectOptions struct {
	input     string
	online    bool
	stream    bool
	transform string
	verbose   bool
}

func newDetectCommand(configPath *string) *cobra.Command {
	var opts detectOptions

	cmd := &cobra.Command{
		Use:   "detect [flags]",
		Short: "Run one detection and print the result as JSON",
		Long: `detect reads a detection request (the POST /api/v1/capa/detect body) from
a file or stdin, runs it with the configured defaults, and prints the response.
With --stream every online step is printed as a JSON line as soon as it is
solved, followed by the response.`,
		Example: `  echo '{"series":[0,0.1,-0.2,9,0.1,0]}' | capa detect
  capa detect -f request.json --online`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDetect(cmd, *configPath, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "file", "f", "-", "request file, - for stdin")
	flags.BoolVar(&opts.online, "online", false, "report the online (per-step) reconstruction")
	flags.BoolVar(&opts.stream, "stream", false, "print each online step as it is solved")
	flags.StringVar(&opts.transform, "transform", "", `override the request transform ("none" or "robust")`)
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log run details to stderr")
	return cmd
}

func runDetect(cmd *cobra.Command, configPath string, opts detectOptions) error {
	viperCfg, err := server.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if !opts.verbose {
		viperCfg.Set("logging.level", "warn")
	}
	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := capa.DefaultConfig()
	if err := config.New(viperCfg).ForPlugin("capa").Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshal capa config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	req, err := readRequest(cmd.InOrStdin(), opts.input)
	if err != nil {
		return err
	}
	if opts.online {
		req.Online = true
	}
	if opts.transform != "" {
		req.Transform = opts.transform
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	var onStep func(anomaly.Step) error
	if opts.stream {
		onStep = func(s anomaly.Step) error { return enc.Encode(s) }
	}

	detector := capa.NewDetector(cfg, logger.Named("capa"), nil, nil)
	resp, err := detector.Detect(cmd.Context(), req, onStep)
	if err != nil {
		return err
	}
	if opts.stream {
		// Steps were already printed.
		resp.Steps = nil
	} else {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(resp)
}

// readRequest decodes a DetectRequest from path, or from stdin when path is "-".
func readRequest(stdin io.Reader, path string) (anomaly.DetectRequest, error) {
	var req anomaly.DetectRequest

	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return req, fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}
