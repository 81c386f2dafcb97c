package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/wader/gifcat/internal/config"
	"github.com/wader/gifcat/internal/gifsource"
	"github.com/wader/gifcat/internal/playback"
	"github.com/wader/gifcat/internal/player"
)

// maxListedDelays is how many delays are listed before eliding
const maxListedDelays = 16

func formatDelays(ds []time.Duration) string {
	var ss []string
	for i, d := range ds {
		if i == maxListedDelays {
			ss = append(ss, fmt.Sprintf("... (%d more)", len(ds)-i))
			break
		}
		ss = append(ss, d.String())
	}
	return strings.Join(ss, ",")
}

func writeInfo(w io.Writer, path string, a *gifsource.Asset, cfg *config.Config) error {
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	optimal := cfg.SizeClasses().OptimalWindow(a.EstimatedSize(), a.FrameCount())
	if cfg.OptimalWindow > 0 && cfg.OptimalWindow < a.FrameCount() {
		optimal = cfg.OptimalWindow
	}
	tick := playback.TickInterval(a)

	_, err = fmt.Fprintf(w,
		"%s: %dx%d %d frames duration %s loops %s\n"+
			"  delays %s\n"+
			"  delay gcd %s tick %s (%d fps)\n"+
			"  decoded %s optimal window %d policy %s skipped %d\n",
		path, a.Width(), a.Height(), a.FrameCount(), a.Duration(), a.LoopCount(),
		formatDelays(a.Delays()),
		a.DelayGCD(), tick, time.Second/tick,
		player.FormatBytes(a.EstimatedSize()), optimal, policy, a.SkippedFrames(),
	)
	return err
}

func (a *app) info(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		asset, err := gifsource.LoadFile(path, gifsource.WithLogger(a.log.WithField("file", path)))
		if err != nil {
			fmt.Fprintf(a.stderr, "%s: %s\n", path, err)
			failed++
			continue
		}
		if err := writeInfo(a.stdout, path, asset, a.cfg); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}
