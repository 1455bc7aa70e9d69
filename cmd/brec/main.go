package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/brec"
	"github.com/hupe1980/brec/blobstore"
	"github.com/hupe1980/brec/blobstore/s3"
	"github.com/hupe1980/brec/internal/cache"
	"github.com/hupe1980/brec/resource"
	"github.com/hupe1980/brec/template"
)

var (
	rootPath      string
	bucket        string
	bucketPrefix  string
	cacheSize     int64
	algorithm     string
	modelDir      string
	abbreviations []string
	blockSize     int
	parallelism   int
	ioLimit       int64
	memoryLimit   int64
	quiet         bool
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "brec",
	Short: "CLI for biometric template pipelines",
	Long: `Train recognition algorithms, enroll records into galleries and score
galleries against each other.

Files are descriptors: a name, optionally followed by bracketed options,
e.g. "scores.mtx[algorithm=Center:L2]". The file suffix picks the format
and the algorithm option names the pipeline that produces the file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var trainCmd = &cobra.Command{
	Use:   "train <input> <model>",
	Short: "Fit an algorithm on input records and store the model",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := template.ParseFile(args[0])
		if err != nil {
			return err
		}
		model, err := destFile(args[1])
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := context.Background()
		if err := s.Train(ctx, input, model); err != nil {
			return err
		}

		if !quiet {
			fmt.Printf("Model stored at %s\n", model.Name)
		}
		return nil
	},
}

var enrollCmd = &cobra.Command{
	Use:   "enroll <input> <gallery>",
	Short: "Enroll input records into a gallery",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := template.ParseFile(args[0])
		if err != nil {
			return err
		}
		gal, err := destFile(args[1])
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := context.Background()
		files, err := s.Enroll(ctx, input, gal)
		if err != nil {
			return err
		}

		if !quiet {
			fmt.Printf("Enrolled %d records into %s (%d failures)\n", len(files), gal.Name, files.Failures())
		}
		return nil
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <target-gallery> <query-gallery> <output>",
	Short: "Score every query against every target",
	Long: `Score every record of the query gallery against every record of the
target gallery and write the matrix to output. A query of "." reuses the
target gallery for a self comparison.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := template.ParseFile(args[0])
		if err != nil {
			return err
		}
		query, err := template.ParseFile(args[1])
		if err != nil {
			return err
		}
		out, err := destFile(args[2])
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := context.Background()
		if err := s.Compare(ctx, target, query, out); err != nil {
			return err
		}

		if !quiet {
			fmt.Printf("Scores written to %s\n", out.Name)
		}
		return nil
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert galleries and score matrices between formats",
}

var convertGalleryCmd = &cobra.Command{
	Use:   "gallery <input> <output>",
	Short: "Re-encode a gallery into the format of the output suffix",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := template.ParseFile(args[0])
		if err != nil {
			return err
		}
		out, err := template.ParseFile(args[1])
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.ConvertGallery(context.Background(), in, out); err != nil {
			return err
		}

		if !quiet {
			fmt.Printf("Converted %s to %s\n", in.Name, out.Name)
		}
		return nil
	},
}

var convertOutputCmd = &cobra.Command{
	Use:   "output <input> <output>",
	Short: "Re-encode a score matrix into the format of the output suffix",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := template.ParseFile(args[0])
		if err != nil {
			return err
		}
		out, err := template.ParseFile(args[1])
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.ConvertOutput(context.Background(), in, out); err != nil {
			return err
		}

		if !quiet {
			fmt.Printf("Converted %s to %s\n", in.Name, out.Name)
		}
		return nil
	},
}

var catCmd = &cobra.Command{
	Use:   "cat",
	Short: "Join galleries or score matrices into one file",
}

var catGalleryCmd = &cobra.Command{
	Use:   "gallery <input>... <output>",
	Short: "Append galleries into one, in argument order",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := parseFiles(args[:len(args)-1])
		if err != nil {
			return err
		}
		out, err := template.ParseFile(args[len(args)-1])
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.CatGalleries(context.Background(), inputs, out); err != nil {
			return err
		}

		if !quiet {
			fmt.Printf("Joined %d galleries into %s\n", len(inputs), out.Name)
		}
		return nil
	},
}

var catOutputCmd = &cobra.Command{
	Use:   "output <input>... <output>",
	Short: "Join score matrices along the axis named by the catType option",
	Long: `Join stored score matrices into one output. The catType option on the
output descriptor picks the axis: colWise appends target columns for a
shared query population, rowWise appends query rows for a shared target
population, e.g. "all.mtx[catType=rowWise]".`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := parseFiles(args[:len(args)-1])
		if err != nil {
			return err
		}
		out, err := template.ParseFile(args[len(args)-1])
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.CatOutputs(context.Background(), inputs, out); err != nil {
			return err
		}

		if !quiet {
			fmt.Printf("Joined %d matrices into %s\n", len(inputs), out.Name)
		}
		return nil
	},
}

// destFile parses a descriptor argument, filling in the --algorithm flag
// when the descriptor carries no algorithm of its own.
func destFile(arg string) (template.File, error) {
	f, err := template.ParseFile(arg)
	if err != nil {
		return template.File{}, err
	}
	if algorithm != "" && !f.Contains("algorithm") {
		f.Set("algorithm", algorithm)
	}
	return f, nil
}

func parseFiles(args []string) ([]template.File, error) {
	files := make([]template.File, 0, len(args))
	for _, arg := range args {
		f, err := template.ParseFile(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func newSession() (*brec.Session, error) {
	var opts []brec.Option

	var rc *resource.Controller
	if ioLimit > 0 || memoryLimit > 0 {
		rc = resource.NewController(resource.Config{
			MemoryLimitBytes:   memoryLimit,
			IOLimitBytesPerSec: ioLimit,
		})
		opts = append(opts, brec.WithResourceController(rc))
	}

	if bucket != "" {
		store, err := s3.New(context.Background(), bucket, s3.WithPrefix(bucketPrefix))
		if err != nil {
			return nil, fmt.Errorf("opening bucket %s: %w", bucket, err)
		}
		var bs blobstore.BlobStore = store
		if cacheSize > 0 {
			bs = blobstore.NewCachingStore(store, cache.NewLRUBlockCache(cacheSize, rc), 0)
		}
		opts = append(opts, brec.WithBlobStore(bs), brec.WithModelStore(bs))
	} else {
		opts = append(opts, brec.WithBlobStore(blobstore.NewLocalStore(rootPath)))
	}

	if modelDir != "" {
		opts = append(opts, brec.WithModelDir(modelDir))
	}
	if blockSize > 0 {
		opts = append(opts, brec.WithBlockSize(blockSize))
	}
	if parallelism > 0 {
		opts = append(opts, brec.WithParallelism(parallelism))
	}

	for _, ab := range abbreviations {
		name, descriptor, ok := strings.Cut(ab, "=")
		if !ok {
			return nil, fmt.Errorf("invalid abbreviation %q, want name=descriptor", ab)
		}
		opts = append(opts, brec.WithAbbreviation(name, descriptor))
	}

	if verbose {
		opts = append(opts, brec.WithLogLevel(slog.LevelDebug))
	} else {
		opts = append(opts, brec.WithQuiet())
	}

	return brec.NewSession(opts...), nil
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&rootPath, "path", "p", ".", "Root directory for local files")
	rootCmd.PersistentFlags().StringVar(&bucket, "bucket", "", "S3 bucket backing galleries, outputs and models")
	rootCmd.PersistentFlags().StringVar(&bucketPrefix, "bucket-prefix", "", "Key prefix inside the bucket")
	rootCmd.PersistentFlags().Int64Var(&cacheSize, "cache-size", 0, "Block cache bytes for remote reads (0 disables caching)")
	rootCmd.PersistentFlags().StringVarP(&algorithm, "algorithm", "a", "", "Algorithm descriptor for files that name none")
	rootCmd.PersistentFlags().StringVar(&modelDir, "model-dir", "", "Directory searched for stored model files")
	rootCmd.PersistentFlags().StringArrayVar(&abbreviations, "abbreviation", nil, "Algorithm shorthand as name=descriptor (repeatable)")
	rootCmd.PersistentFlags().IntVar(&blockSize, "block-size", 0, "Records per pipeline block (0 uses the default)")
	rootCmd.PersistentFlags().IntVarP(&parallelism, "parallelism", "j", 0, "Worker goroutines (0 uses all CPUs)")
	rootCmd.PersistentFlags().Int64Var(&ioLimit, "io-limit", 0, "Streaming throughput cap in bytes per second (0 unlimited)")
	rootCmd.PersistentFlags().Int64Var(&memoryLimit, "memory-limit", 0, "Cache memory cap in bytes (0 unlimited)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress result summaries and progress")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline activity to stderr")

	// Convert and cat commands
	convertCmd.AddCommand(convertGalleryCmd, convertOutputCmd)
	catCmd.AddCommand(catGalleryCmd, catOutputCmd)

	// Add all commands to root
	rootCmd.AddCommand(
		trainCmd,
		enrollCmd,
		compareCmd,
		convertCmd,
		catCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if brec.IsFatal(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
