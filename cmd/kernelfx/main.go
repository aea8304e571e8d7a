// Command kernelfx applies chains of 3x3 convolution kernels to an image.
//
//	kernelfx -in photo.jpg -out sharp.png -effects sharpen,emboss
//	kernelfx -in photo.jpg -out sheet.png -sheet -cols 5
//	kernelfx -script steps.json
//	kernelfx -list
//	kernelfx -in photo.jpg -view
//
// Rendering runs on the CPU reference device, so no display is needed except
// for -view.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/phanxgames/kernelfx"
	"github.com/phanxgames/kernelfx/contactsheet"
	"github.com/phanxgames/kernelfx/viewer"
)

var (
	// Flags
	source      = flag.String("in", "", "Source image: file path, http(s) URL or data URI")
	destination = flag.String("out", "", "Destination PNG, - for stdout")
	effects     = flag.String("effects", "", "Comma separated kernel chain")
	size        = flag.String("size", "", "Viewport WxH (default: image size)")
	kernelsFile = flag.String("kernels", "", "JSON file of extra kernels {\"name\": [9 numbers]}")
	list        = flag.Bool("list", false, "List kernel names and exit")
	scriptFile  = flag.String("script", "", "Run a JSON script")
	sheet       = flag.Bool("sheet", false, "Write a contact sheet of every kernel")
	columns     = flag.Int("cols", 4, "Contact sheet columns")
	view        = flag.Bool("view", false, "Open the interactive viewer")
	verbose     = flag.Bool("v", false, "Debug logging to stderr")
)

func main() {
	flag.Parse()
	log.SetFlags(0)
	log.SetPrefix("kernelfx: ")

	if *verbose {
		kernelfx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	registry := kernelfx.NewKernelRegistry()
	if *kernelsFile != "" {
		if err := loadKernels(registry, *kernelsFile); err != nil {
			log.Fatal(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case *list:
		for _, name := range registry.Names() {
			fmt.Println(name)
		}
	case *view:
		err := viewer.Run(viewer.Config{
			Title:    "kernelfx",
			Image:    *source,
			Effects:  parseEffects(*effects),
			Registry: registry,
			ShowHelp: true,
		})
		if err != nil {
			log.Fatal(err)
		}
	case *scriptFile != "":
		if err := runScript(ctx, registry, *scriptFile); err != nil {
			log.Fatal(err)
		}
	default:
		if *source == "" || *destination == "" {
			flag.Usage()
			log.Fatal("Usage: kernelfx -in input.jpg -out out.png [-effects a,b]")
		}
		if err := render(ctx, registry); err != nil {
			log.Fatal(err)
		}
	}
}

func loadKernels(r *kernelfx.KernelRegistry, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return r.LoadJSON(f)
}

func runScript(ctx context.Context, registry *kernelfx.KernelRegistry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	script, err := kernelfx.LoadScript(data)
	if err != nil {
		return err
	}
	vp, err := parseSize(*size)
	if err != nil {
		return err
	}
	opts := []kernelfx.Option{kernelfx.WithRegistry(registry)}
	if vp != (image.Point{}) {
		opts = append(opts, kernelfx.WithViewport(vp.X, vp.Y))
	}
	dev := kernelfx.NewSoftDevice()
	defer dev.Dispose()
	p, err := kernelfx.New(dev, opts...)
	if err != nil {
		return err
	}
	defer p.Dispose()
	return script.Run(ctx, p, filepath.Dir(path))
}

func render(ctx context.Context, registry *kernelfx.KernelRegistry) error {
	toStdout := *destination == "-"
	if toStdout && term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("refusing to write PNG data to a terminal")
	}

	img, err := fetch(ctx, *source)
	if err != nil {
		return err
	}
	vp, err := parseSize(*size)
	if err != nil {
		return err
	}
	if vp == (image.Point{}) {
		vp = img.Bounds().Size()
	}

	dev := kernelfx.NewSoftDevice()
	defer dev.Dispose()
	p, err := kernelfx.New(dev, kernelfx.WithViewport(vp.X, vp.Y), kernelfx.WithRegistry(registry))
	if err != nil {
		return err
	}
	defer p.Dispose()
	if err := p.LoadDecoded(img); err != nil {
		return err
	}

	start := time.Now()
	var out image.Image
	if *sheet {
		out, err = contactsheet.Render(p, contactsheet.Options{Columns: *columns})
	} else {
		if err = p.ApplyEffects(parseEffects(*effects)...); err == nil {
			out, err = p.Snapshot()
		}
		if s := p.Stats(); len(s.Skipped) > 0 {
			fmt.Fprintf(os.Stderr, "skipped unknown kernels: %s\n", strings.Join(s.Skipped, ", "))
		}
	}
	if err != nil {
		return err
	}

	if toStdout {
		return kernelfx.WritePNG(os.Stdout, out)
	}
	if err := kernelfx.SavePNG(*destination, out); err != nil {
		return err
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		fmt.Fprintf(os.Stderr, "Rendered in: \x1b[92m%.2fs\x1b[39m\nSaved as: %s \x1b[92m✓\x1b[39m\n",
			time.Since(start).Seconds(), filepath.Base(*destination))
	}
	return nil
}

// fetch decodes ref, with a spinner on stderr for remote images.
func fetch(ctx context.Context, ref string) (image.Image, error) {
	if isRemote(ref) && term.IsTerminal(int(os.Stderr.Fd())) {
		s := newSpinner(os.Stderr)
		s.start("Fetching " + ref)
		defer s.stop()
	}
	img, err := kernelfx.DefaultFetcher{}.Fetch(ctx, ref)
	if err != nil {
		return nil, &kernelfx.DecodeError{Ref: ref, Err: err}
	}
	return img, nil
}
