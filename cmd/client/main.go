package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"deepfake-detector-go/internal/client"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CLI flags
var (
	serverFlag  string
	timeoutFlag time.Duration
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "deepfake-client",
	Short: "Command-line client for the DeepFake Detection API",
	Long: `deepfake-client talks to a running DeepFake Detection API server.

Examples:
  deepfake-client health
  deepfake-client upload ./clip.mp4
  deepfake-client detect clip.mp4
  deepfake-client run ./clip.mp4 --server http://localhost:5000`,
	SilenceUsage: true,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server and the classifier are ready",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		health, err := newClient().CheckHealth(cmd.Context())
		if health != nil {
			printJSON(health)
		}
		return err
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <video>",
	Short: "Upload a video file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().Upload(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printJSON(resp)
		return nil
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect <filename>",
	Short: "Run detection on a previously uploaded video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().Detect(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printJSON(resp)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run <video>",
	Short: "Upload a video and run detection on it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()

		uploaded, err := c.Upload(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		resp, err := c.Detect(cmd.Context(), uploaded.Filename)
		if err != nil {
			return err
		}
		printJSON(resp)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverFlag, "server", "s", "http://localhost:5000", "API server base URL")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 5*time.Minute, "HTTP request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(healthCmd, uploadCmd, detectCmd, runCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newClient() *client.DetectorAPIClient {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if verboseFlag {
		logger.SetLevel(logrus.DebugLevel)
	}
	return client.NewDetectorAPIClient(serverFlag, timeoutFlag, logger)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка сериализации ответа: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
