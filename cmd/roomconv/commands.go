package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/stbtool/internal/convert"
	"github.com/cory-johannsen/stbtool/internal/lookup"
	"github.com/cory-johannsen/stbtool/internal/room"
)

func newConvertCmd(a *app) *cobra.Command {
	var to string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "convert <src> [dst]",
		Short: "Convert one room file",
		Long:  "Convert one room file. Without dst the output is written next to src with the output format's extension.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if overwrite {
				a.cfg.Convert.Overwrite = true
			}
			conv, err := a.converter()
			if err != nil {
				return err
			}
			src := args[0]
			format := convert.FormatUnknown
			var dst string
			if len(args) == 2 {
				dst = args[1]
				if to != "" {
					if format, err = convert.ParseFormat(to); err != nil {
						return err
					}
				}
			} else {
				if format, err = a.outputFormat(to); err != nil {
					return err
				}
				dst = convert.DestPath(src, filepath.Dir(src), format)
			}
			res, err := conv.Convert(src, dst, format)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote   %s  (%d rooms, %d entities)  in %s\n",
				res.Dst, res.Rooms, res.Entities, res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "output format: stb or xml (default from config, or dst extension)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing destination")
	return cmd
}

func newBatchCmd(a *app) *cobra.Command {
	var to string
	var workers int
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "batch <src-dir> <out-dir>",
		Short: "Convert every room file in a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers > 0 {
				a.cfg.Convert.Workers = workers
			}
			if overwrite {
				a.cfg.Convert.Overwrite = true
			}
			format, err := a.outputFormat(to)
			if err != nil {
				return err
			}
			conv, err := a.converter()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			res, err := conv.Batch(ctx, args[0], args[1], format)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range res.Results {
				fmt.Fprintf(out, "wrote   %s  (%d rooms)\n", r.Dst, r.Rooms)
			}
			for _, f := range res.Failures {
				fmt.Fprintf(out, "failed  %s: %v\n", f.Path, f.Err)
			}
			fmt.Fprintf(out, "total   %d converted, %d failed, %d skipped in %s\n",
				len(res.Results), len(res.Failures), len(res.Skipped), res.Elapsed.Round(time.Millisecond))
			if len(res.Failures) > 0 {
				return fmt.Errorf("%d of %d documents failed", len(res.Failures), len(res.Failures)+len(res.Results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "output format: stb or xml (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "documents converted at once (default from config)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing outputs")
	return cmd
}

func newInfoCmd(a *app) *cobra.Command {
	var entities string
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Summarize the rooms in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := a.converter()
			if err != nil {
				return err
			}
			file, format, err := conv.ReadFile(args[0])
			if err != nil {
				return err
			}

			if entities == "" {
				entities = a.cfg.Lookup.Entities
			}
			var names *lookup.Service
			if entities != "" {
				if names, err = lookup.Load(entities); err != nil {
					return err
				}
			}
			printInfo(cmd, args[0], format, file, names)
			return nil
		},
	}
	cmd.Flags().StringVar(&entities, "entities", "", "YAML entity table for names (default from config)")
	return cmd
}

func printInfo(cmd *cobra.Command, path string, format convert.Format, file *room.File, names *lookup.Service) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s, %d rooms, %d entities\n", path, format, file.RoomCount(), file.EntityCount())
	for i, rm := range file.Rooms {
		fmt.Fprintf(out, "%4d  %d.%d.%d  %-4s  difficulty %d  weight %g  %q  (%d stacks, %d entities)\n",
			i, rm.Info.Type, rm.Info.Variant, rm.Info.Subtype, rm.Info.Shape,
			rm.Difficulty, rm.Weight, rm.Name, rm.StackCount(), rm.EntityCount())
		if names == nil {
			continue
		}
		for st := range rm.Spawns() {
			for _, e := range st.Entities {
				fmt.Fprintf(out, "        (%d,%d) %s\n", st.X-1, st.Y-1, names.Name(e))
			}
		}
	}
}

func newPreviewCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <file> <room-index> <out.xml>",
		Short: "Write one room as a preview document for a test launch",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := a.converter()
			if err != nil {
				return err
			}
			file, _, err := conv.ReadFile(args[0])
			if err != nil {
				return err
			}
			idx, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("room index %q: %w", args[1], err)
			}
			if idx < 0 || idx >= file.RoomCount() {
				return fmt.Errorf("room index %d out of range [0,%d)", idx, file.RoomCount())
			}
			if err := conv.WritePreview(args[2], file.Rooms[idx]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote   %s  (%q)\n", args[2], file.Rooms[idx].Name)
			return nil
		},
	}
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "watch <dir> <out-dir>",
		Short: "Re-export room files whenever they change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat(to)
			if err != nil {
				return err
			}
			conv, err := a.converter()
			if err != nil {
				return err
			}
			w, err := convert.NewWatcher(conv, convert.WatchOptions{
				OutDir:     args[1],
				To:         format,
				Debounce:   a.cfg.Watch.Debounce,
				Extensions: a.cfg.Watch.Extensions,
			}, args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "output format: stb or xml (default from config)")
	return cmd
}
