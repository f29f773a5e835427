package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type editFeature struct {
	name  string
	route string
	short string
}

var editFeatures = []editFeature{
	{"ocr", "ocr-image", "Extract text from images"},
	{"colorize", "colorize-image", "Colorize black and white photos"},
	{"enhance", "enhance-image", "Upscale and clean up photos"},
	{"remove-bg", "remove-image-background", "Remove the background from photos"},
}

type fileResult struct {
	path string
	out  outcome
	err  error
}

// runBatch uploads every file with at most concurrency requests in flight.
// A single file gets a spinner, several get a progress bar.
func runBatch(files []string, concurrency int, label string, send func(path string) (outcome, error)) []fileResult {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]fileResult, len(files))

	var (
		spin *spinner.Spinner
		bar  *progressbar.ProgressBar
	)
	if len(files) == 1 {
		spin = spinner.New(spinner.CharSets[14], 120*time.Millisecond)
		spin.Suffix = " " + label + "..."
		spin.Writer = os.Stderr
		spin.Start()
	} else {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(18),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, path := range files {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, path string) {
			defer wg.Done()
			defer func() { <-sem }()
			out, err := send(path)
			results[i] = fileResult{path: path, out: out, err: err}
			if bar != nil {
				_ = bar.Add(1)
			}
		}(i, path)
	}
	wg.Wait()
	if spin != nil {
		spin.Stop()
	}
	return results
}

func report(results []fileResult, ui *ui) error {
	failed := 0
	for _, r := range results {
		switch {
		case r.err != nil:
			failed++
			fmt.Printf("%s %s: %v\n", ui.err("[FAIL]"), r.path, r.err)
		case !r.out.Success:
			failed++
			kind := ""
			if r.out.ErrorKind != "" {
				kind = ui.dim(" (" + r.out.ErrorKind + ")")
			}
			fmt.Printf("%s %s: %s%s\n", ui.err("[FAIL]"), r.path, r.out.Message, kind)
		default:
			fmt.Printf("%s %s -> %s\n", ui.ok("[OK]"), r.path, r.out.Content)
			if r.out.Text != "" {
				fmt.Println(strings.TrimRight(r.out.Text, "\n"))
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

func requireToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("token is required (run `pixelq auth set --token ...` or set PIXELQ_TOKEN)")
	}
	return nil
}

func editCmd(f editFeature, baseURL, token *string, ui *ui) *cobra.Command {
	var (
		publish     bool
		format      string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   f.name + " <file>...",
		Short: f.short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(*token); err != nil {
				return err
			}
			fields := map[string]string{}
			if publish {
				fields["publish"] = "true"
			}
			if f.name == "ocr" && format != "" {
				fields["format"] = format
			}
			c := newClient(*baseURL, *token)
			results := runBatch(args, concurrency, "Processing", func(path string) (outcome, error) {
				return c.uploadImage(f.route, path, fields)
			})
			return report(results, ui)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "Files processed in parallel")
	if f.name == "ocr" {
		cmd.Flags().StringVar(&format, "format", "", "Vendor output format (default txt)")
	} else {
		cmd.Flags().BoolVar(&publish, "publish", false, "Publish the result to the creations feed")
	}
	return cmd
}

func removeObjectCmd(baseURL, token *string, ui *ui) *cobra.Command {
	var (
		object      string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:     "remove-object <file>...",
		Short:   "Erase an object from photos",
		Example: "pixelq remove-object --object dog park.png",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(object) == "" {
				return errors.New("--object is required")
			}
			if err := requireToken(*token); err != nil {
				return err
			}
			c := newClient(*baseURL, *token)
			results := runBatch(args, concurrency, "Removing "+object, func(path string) (outcome, error) {
				return c.uploadImage("remove-image-object", path, map[string]string{"object": object})
			})
			return report(results, ui)
		},
	}
	cmd.Flags().StringVar(&object, "object", "", "Object to remove")
	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "Files processed in parallel")
	return cmd
}

func generateCmd(baseURL, token *string, ui *ui) *cobra.Command {
	var (
		promptText string
		publish    bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an image from a text prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(promptText) == "" {
				return errors.New("--prompt is required")
			}
			if err := requireToken(*token); err != nil {
				return err
			}
			c := newClient(*baseURL, *token)
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Generating image..."
			spin.Writer = os.Stderr
			spin.Start()
			out, err := c.postJSON("generate-image", map[string]any{"prompt": promptText, "publish": publish})
			spin.Stop()
			return report([]fileResult{{path: "generate", out: out, err: err}}, ui)
		},
	}
	cmd.Flags().StringVar(&promptText, "prompt", "", "Text prompt")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish the result to the creations feed")
	return cmd
}

func creationsCmd(baseURL, token *string, ui *ui) *cobra.Command {
	var (
		published bool
		limit     int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List your creations, or everyone's published ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(*token); err != nil {
				return err
			}
			c := newClient(*baseURL, *token)
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Fetching creations..."
			spin.Writer = os.Stderr
			spin.Start()
			items, err := c.listCreations(published, limit)
			spin.Stop()
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println(ui.dim("No creations yet."))
				return nil
			}
			for _, it := range items {
				flag := ui.dim("private")
				if it.Publish {
					flag = ui.info("public ")
				}
				fmt.Printf("%s  %s  %s\n  %s\n", it.CreatedAt.Local().Format("2006-01-02 15:04"), flag, it.Prompt, it.Content)
			}
			return nil
		},
	}
	list.Flags().BoolVar(&published, "published", false, "Only published creations")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum number of creations")

	cmd := &cobra.Command{
		Use:   "creations",
		Short: "Browse stored creations",
	}
	cmd.AddCommand(list)
	return cmd
}
