package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/sonar/l1frames"
	"github.com/banshee-data/sonar.report/internal/sonar/monitor"
	"github.com/banshee-data/sonar.report/internal/sonar/pipeline"
	"github.com/banshee-data/sonar.report/internal/sonar/storage/sqlite"
	"github.com/banshee-data/sonar.report/internal/version"
)

var (
	configPath = flag.String("config", "", "Tuning config JSON (defaults when empty)")
	dbPath     = flag.String("db", "", "SQLite database for runs and detections (disabled when empty)")
	channels   = flag.String("channels", "port", "Comma-separated channel names, one pipeline each")
	frames     = flag.Int("frames", 300, "Synthetic frames per channel")
	seed       = flag.Int64("seed", 1, "Synthetic scene seed; channel i uses seed+i")
	multibeam  = flag.Int("multibeam", 0, "Beams per synthetic frame; 0 simulates a scanning head")
	recording  = flag.String("recording", "", "JSON-lines frame recording replayed on every channel instead of synthetic frames")
	plotsDir   = flag.String("plots", "", "Base directory for plots, snapshots and the HTML report (disabled when empty)")
	snapEvery  = flag.Int("snapshot-every", 10, "Write a PNG snapshot every N emitted frames (0 disables)")
	probe      = flag.String("probe", "", "Pixel x,y whose raw and denoised intensity is plotted")
	diag       = flag.Bool("diag", false, "Write pipeline diagnostics to stderr")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

// Channel names end up in file names.
var channelName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// options is everything run needs, separated from flag parsing for tests.
type options struct {
	ConfigPath string
	DBPath     string
	Channels   []string
	Frames     int
	Seed       int64
	Multibeam  int
	Recording  string
	PlotsDir   string
	SnapEvery  int
	Probe      *image.Point
}

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println(version.String())
		return
	}
	log.Printf("%s", version.String())

	opts := options{
		ConfigPath: *configPath,
		DBPath:     *dbPath,
		Channels:   splitChannels(*channels),
		Frames:     *frames,
		Seed:       *seed,
		Multibeam:  *multibeam,
		Recording:  *recording,
		PlotsDir:   *plotsDir,
		SnapEvery:  *snapEvery,
	}
	if *probe != "" {
		p, err := parsePoint(*probe)
		if err != nil {
			log.Fatalf("invalid -probe: %v", err)
		}
		opts.Probe = &p
	}
	if *diag {
		pipeline.SetLogWriters(os.Stderr, os.Stderr, nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		log.Fatalf("replay failed: %v", err)
	}
}

func splitChannels(s string) []string {
	var out []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func parsePoint(s string) (image.Point, error) {
	var p image.Point
	if _, err := fmt.Sscanf(s, "%d,%d", &p.X, &p.Y); err != nil {
		return image.Point{}, fmt.Errorf("want x,y: %w", err)
	}
	return p, nil
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

// run replays every channel and writes the requested artifacts.
func run(ctx context.Context, o options) error {
	if len(o.Channels) == 0 {
		return errors.New("no channels")
	}
	for _, name := range o.Channels {
		if !channelName.MatchString(name) {
			return fmt.Errorf("invalid channel name %q", name)
		}
	}
	tc, err := loadTuning(o.ConfigPath)
	if err != nil {
		return err
	}
	cfg, err := pipeline.ConfigFromTuning(tc)
	if err != nil {
		return err
	}
	cfgJSON, err := json.Marshal(tc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	var recorded []l1frames.Frame
	if o.Recording != "" {
		if recorded, err = readRecording(o.Recording); err != nil {
			return err
		}
		log.Printf("loaded %d frames from %s", len(recorded), o.Recording)
	}

	var db *sql.DB
	if o.DBPath != "" {
		if db, err = sqlite.Open(o.DBPath); err != nil {
			return err
		}
		defer db.Close()
	}

	var outDir string
	var detLog *monitor.DetectionLog
	plotters := map[string]*monitor.TracePlotter{}
	if o.PlotsDir != "" {
		outDir = monitor.MakePlotOutputDir(o.PlotsDir, o.Recording)
		detLog = monitor.NewDetectionLog()
	}

	chans := make([]pipeline.Channel, 0, len(o.Channels))
	recorders := map[string]*runRecorder{}
	for i, name := range o.Channels {
		ch := pipeline.Channel{Name: name, Config: cfg}
		if recorded != nil {
			ch.Source = l1frames.NewSliceSource(recorded)
		} else {
			ch.Source = newSynthetic(o.Seed+int64(i), o.Frames, o.Multibeam)
		}

		var sinks []pipeline.Sink
		if db != nil {
			rec, err := newRunRecorder(db, name, cfgJSON)
			if err != nil {
				return err
			}
			recorders[name] = rec
			sinks = append(sinks, rec)
		}
		if outDir != "" {
			tp := monitor.NewTracePlotter(name)
			if o.Probe != nil {
				tp.WithProbe(*o.Probe)
			}
			if err := tp.Start(outDir); err != nil {
				return err
			}
			plotters[name] = tp
			sinks = append(sinks, tp, detLog.Sink(name))
			if o.SnapEvery > 0 {
				snaps, err := monitor.NewSnapshotSink(filepath.Join(outDir, "snapshots"), name, o.SnapEvery, true)
				if err != nil {
					return err
				}
				sinks = append(sinks, snaps)
			}
		}
		ch.Sink = pipeline.MultiSink(sinks...)
		chans = append(chans, ch)
	}

	stats, runErr := pipeline.RunChannels(ctx, chans)
	for _, name := range o.Channels {
		st, ok := stats[name]
		if !ok {
			continue
		}
		log.Printf("%s: frames=%d dropped=%d emitted=%d detections=%d range=%.2f±%.2f m in %s",
			name, st.Frames, st.Dropped, st.Emitted, st.Detections, st.RangeMean, st.RangeStdDev, st.Elapsed)
		if rec := recorders[name]; rec != nil {
			if err := rec.finish(st); err != nil {
				log.Printf("%s: failed to store run summary: %v", name, err)
			}
		}
	}

	if outDir != "" {
		if err := writeArtifacts(outDir, o.Channels, plotters, detLog); err != nil {
			return err
		}
		log.Printf("artifacts written to %s", outDir)
	}
	return runErr
}

func newSynthetic(seed int64, frames, beams int) *l1frames.SyntheticScanner {
	s := l1frames.NewSyntheticScanner(seed)
	s.Limit = frames
	if beams > 1 {
		s.BeamsPerFrame = beams
	}
	return s
}

func writeArtifacts(dir string, names []string, plotters map[string]*monitor.TracePlotter, detLog *monitor.DetectionLog) error {
	for _, name := range names {
		tp := plotters[name]
		tp.Stop()
		n, err := tp.GeneratePlots()
		if err != nil {
			return fmt.Errorf("%s plots: %w", name, err)
		}
		log.Printf("%s: %d plots from %d samples", name, n, tp.SampleCount())
	}

	f, err := os.Create(filepath.Join(dir, "detections.html"))
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	return detLog.Render(f, "Sonar Detections")
}
