package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/idcheck/mrzscan/internal/scanner"
	"github.com/spf13/cobra"
)

var (
	framesFPS    int
	framesPolicy string
	framesLinger time.Duration
)

var framesCmd = &cobra.Command{
	Use:   "frames <dir>",
	Short: "Replay captured camera frames through the live scanner",
	Long: `Replay the PNG and JPEG frames of a directory, in name order, through the
live scanning session at a fixed frame rate. Frames that arrive while the
scanner is busy are dropped, as with a real camera. The session ends at the
first MRZ accepted by the policy.

Accept policies:
  fully_valid      every check digit must match (default from config)
  partially_valid  any structurally valid MRZ is accepted

Examples:
  mrzscan frames ./capture
  mrzscan frames ./capture --fps 30 --policy partially_valid`,
	Args: cobra.ExactArgs(1),
	RunE: runFrames,
}

func init() {
	rootCmd.AddCommand(framesCmd)

	framesCmd.Flags().IntVar(&framesFPS, "fps", 10, "Frames submitted per second")
	framesCmd.Flags().StringVar(&framesPolicy, "policy", "", "Accept policy (fully_valid, partially_valid)")
	framesCmd.Flags().DurationVar(&framesLinger, "linger", 2*time.Second, "Time to wait for the last frame after the sequence ends")
}

func runFrames(cmd *cobra.Command, args []string) error {
	if framesFPS < 1 {
		return fmt.Errorf("--fps must be positive")
	}
	if framesPolicy == "" {
		framesPolicy = cfg.Scanner.AcceptPolicy
	}
	policy, err := scanner.ParseAcceptPolicy(framesPolicy)
	if err != nil {
		return err
	}

	files, err := frameFiles(args[0])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no frames found in %s", args[0])
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline := scanner.NewPipeline(engine, engine, newParser(), log)
	session := scanner.NewSession(pipeline, policy, nil, log)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	session.Start(ctx)
	defer session.Stop()

	ticker := time.NewTicker(time.Second / time.Duration(framesFPS))
	defer ticker.Stop()

	replayFrames(ctx, session, ticker.C, files)

	waitCtx, waitCancel := context.WithTimeout(ctx, framesLinger)
	defer waitCancel()
	result, err := session.Wait(waitCtx)

	stats := session.Stats()
	log.Info().
		Uint64("submitted", stats.Submitted).
		Uint64("dropped", stats.Dropped).
		Uint64("processed", stats.Processed).
		Uint64("results", stats.Results).
		Msg("frame replay finished")

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("no acceptable MRZ in %d frames", len(files))
	}
	if err != nil {
		return err
	}

	log.Info().Uint64("frame", result.Seq).Msg("MRZ accepted")
	return writeResult(cmd.OutOrStdout(), files[result.Seq], result.MRZ)
}

// replayFrames submits one frame per tick until the files run out or the
// session accepts a scan
func replayFrames(ctx context.Context, session *scanner.Session, tick <-chan time.Time, files []string) {
	for seq, file := range files {
		select {
		case <-ctx.Done():
			return
		case <-session.Done():
			return
		case <-tick:
		}

		img, err := decodeFrame(file)
		if err != nil {
			log.Warn().Err(err).Str("file", file).Msg("skipping unreadable frame")
			continue
		}

		if !session.Submit(scanner.Frame{Seq: uint64(seq), Image: img, CapturedAt: time.Now()}) {
			log.Debug().Str("file", file).Msg("frame dropped")
		}
	}
}

func decodeFrame(file string) (image.Image, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

// frameFiles lists the PNG and JPEG files of dir in name order
func frameFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
