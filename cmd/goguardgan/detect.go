package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/hed1ad/goguardgan/pkg/detectors/anogan"
	gio "github.com/hed1ad/goguardgan/pkg/io"
	"github.com/hed1ad/goguardgan/pkg/io/csv"
	"github.com/hed1ad/goguardgan/pkg/io/pcap"
)

type detectOptions struct {
	train      string
	input      string
	pcap       bool
	configPath string
	output     string
	format     string
	workers    int
}

func newDetectCmd(global *globalOptions) *cobra.Command {
	var opts detectOptions

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Train AnoGAN and score samples",
		Long: `Train an AnoGAN detector on --train and write anomaly scores.

Without --input the training samples themselves are scored. Inputs are CSV
files with a header row, or pcap/pcapng captures with --pcap.

The config file defaults to $GOGUARDGAN_CONFIG. Both variables may also be
set in a .env file in the working directory.

Example: goguardgan detect --train normal.pcap --input today.pcap --pcap --config anogan.yaml --output scores.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "csv" && opts.format != "jsonl" {
				return fmt.Errorf("unknown output format %q", opts.format)
			}
			if opts.configPath == "" {
				opts.configPath = os.Getenv(envConfig)
			}
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = opts.workers
			}
			return runDetect(cmd, global.logger, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.train, "train", "", "Training data file")
	cmd.Flags().StringVar(&opts.input, "input", "", "Data to score (defaults to the training data)")
	cmd.Flags().BoolVar(&opts.pcap, "pcap", false, "Read packet captures instead of CSV")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "YAML hyperparameter file")
	cmd.Flags().StringVar(&opts.output, "output", "-", "Output file, - for stdout")
	cmd.Flags().StringVar(&opts.format, "format", "csv", "Output format: csv|jsonl")
	cmd.Flags().IntVar(&opts.workers, "workers", 1, "Parallel latent queries")
	_ = cmd.MarkFlagRequired("train")

	return cmd
}

func runDetect(cmd *cobra.Command, logger *logrus.Logger, cfg anogan.Config, opts detectOptions) error {
	runID := uuid.NewString()
	log := logger.WithField("run_id", runID)

	trainData, features, err := readData(opts.train, opts.pcap)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"file":     opts.train,
		"samples":  len(trainData),
		"features": len(features),
	}).Info("loaded training data")

	detector, err := anogan.New(anogan.WithConfig(cfg), anogan.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := detector.Fit(trainData); err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	samples, scores := trainData, detector.DecisionScores()
	if opts.input != "" {
		samples, _, err = readData(opts.input, opts.pcap)
		if err != nil {
			return err
		}
		if scores, err = detector.DecisionFunction(samples); err != nil {
			return fmt.Errorf("score %s: %w", opts.input, err)
		}
	}

	results := gio.Results(samples, scores, detector.Threshold())
	anomalies := 0
	for i := range results {
		results[i].Metadata = map[string]any{"run_id": runID}
		if results[i].IsAnomaly {
			anomalies++
		}
	}

	w, err := newResultWriter(cmd.OutOrStdout(), opts.output, opts.format, features)
	if err != nil {
		return err
	}
	if err := w.WriteAll(results); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"samples":   len(results),
		"anomalies": anomalies,
		"threshold": detector.Threshold(),
		"max_score": floats.Max(scores),
		"min_score": floats.Min(scores),
	}).Info("detection complete")
	return nil
}

func readData(path string, isPcap bool) ([][]float64, []string, error) {
	var (
		r   gio.Reader
		err error
	)
	if isPcap {
		r, err = pcap.NewFileReader(path)
	} else {
		r, err = csv.NewReader(path)
	}
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	data, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	var names []string
	if fe, ok := r.(gio.FeatureExtractor); ok {
		names = fe.FeatureNames()
	}
	return data, names, nil
}

func newResultWriter(stdout io.Writer, output, format string, features []string) (gio.Writer, error) {
	toFile := output != "" && output != "-"

	switch format {
	case "csv":
		if !toFile {
			return csv.NewWriter(stdout, features), nil
		}
		w, err := csv.CreateWriter(output, features)
		if err != nil {
			return nil, err
		}
		return w, nil
	case "jsonl":
		if toFile {
			f, err := os.Create(output)
			if err != nil {
				return nil, err
			}
			return &jsonlWriter{enc: json.NewEncoder(f), closer: f}, nil
		}
		return &jsonlWriter{enc: json.NewEncoder(stdout)}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// jsonlWriter writes one JSON object per result, metadata included.
type jsonlWriter struct {
	enc    *json.Encoder
	closer io.Closer
}

func (w *jsonlWriter) Write(result gio.Result) error {
	return w.enc.Encode(result)
}

func (w *jsonlWriter) WriteAll(results []gio.Result) error {
	for _, r := range results {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
