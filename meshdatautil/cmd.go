/*
Copyright © 2024 the Meshdata authors.
This file is part of Meshdata.

Meshdata is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Meshdata is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Meshdata.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package meshdatautil wires the meshdata library into a command-line
// interface.
package meshdatautil

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/spatialmodel/meshdata/dfs"
	"github.com/spatialmodel/meshdata/dfsu"
	"github.com/spatialmodel/meshdata/generic"
)

// Root is the main command.
var Root = &cobra.Command{
	Use:   "meshdata",
	Short: "Read, write and transform time-varying spatial data files.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
	SilenceUsage: true,
}

func init() {
	Root.PersistentFlags().Bool("verbose", false, "Enable debug logging.")

	scaleCmd.Flags().Float64("offset", 0, "Value added to every data value.")
	scaleCmd.Flags().Float64("factor", 1, "Value every data value is multiplied by.")
	scaleCmd.Flags().StringSlice("items", nil, "Items to process, by number or name; default all.")

	extractCmd.Flags().String("start", "", "Start of extraction: step index, elapsed seconds or timestamp.")
	extractCmd.Flags().String("end", "", "End of extraction: step index, elapsed seconds or timestamp.")
	extractCmd.Flags().StringSlice("items", nil, "Items to extract, by number or name; default all.")

	avgCmd.Flags().Bool("skipna", true, "Require a value at every time step; elements missing anywhere become missing.")

	quantileCmd.Flags().Float64Slice("q", nil, "Quantiles to compute, each in [0,1].")
	quantileCmd.Flags().Float64("buffer-size", 1e9, "Maximum memory for the computation in bytes.")

	Root.AddCommand(infoCmd, scaleCmd, sumCmd, diffCmd, concatCmd,
		extractCmd, avgCmd, quantileCmd, meshCmd)
}

// parseItems interprets each entry as a 0-based item number when it
// parses as an integer, and as an item name otherwise.
func parseItems(entries []string) generic.ItemSelection {
	var sel generic.ItemSelection
	for _, e := range entries {
		if n, err := cast.ToIntE(e); err == nil {
			sel.Numbers = append(sel.Numbers, n)
		} else {
			sel.Names = append(sel.Names, e)
		}
	}
	if sel.Numbers != nil && sel.Names != nil {
		log.Warn("mixing item numbers and names; using only the names")
		sel.Numbers = nil
	}
	return sel
}

// parseBound interprets a bound string as a step index, elapsed seconds
// or timestamp.
func parseBound(s string) (generic.Bound, error) {
	if s == "" {
		return generic.Bound{}, nil
	}
	if n, err := cast.ToIntE(s); err == nil {
		return generic.Step(n), nil
	}
	if sec, err := cast.ToFloat64E(s); err == nil {
		return generic.Seconds(sec), nil
	}
	if t, err := cast.ToTimeE(s); err == nil {
		return generic.At(t), nil
	}
	return generic.Bound{}, fmt.Errorf("cannot interpret %q as a step index, seconds or timestamp", s)
}

var infoCmd = &cobra.Command{
	Use:   "info [file]",
	Short: "Print the header of a file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := dfs.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		info := f.FileInfo()
		fmt.Printf("title: %s\n", info.Title)
		fmt.Printf("type: %s\n", info.Type)
		fmt.Printf("projection: %s\n", info.Projection)
		fmt.Printf("time: %d steps from %v", f.NSteps(), info.StartTime)
		if info.TimeStep > 0 {
			fmt.Printf(" every %g s", info.TimeStep)
		}
		fmt.Println()
		if info.NLayers > 0 {
			fmt.Printf("layers: %d (%d sigma)\n", info.NLayers, info.NSigma)
		}
		fmt.Println("items:")
		for i, it := range f.Items() {
			fmt.Printf("  %d: %s <%s> (%s), %d values\n", i, it.Name, it.Quantity, it.Unit, it.ElementCount)
		}
		return nil
	},
}

var scaleCmd = &cobra.Command{
	Use:   "scale [infile] [outfile]",
	Short: "Copy a file, scaling the data as value*factor + offset.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		offset, _ := cmd.Flags().GetFloat64("offset")
		factor, _ := cmd.Flags().GetFloat64("factor")
		items, _ := cmd.Flags().GetStringSlice("items")
		return generic.Scale(args[0], args[1], offset, factor, parseItems(items))
	},
}

var sumCmd = &cobra.Command{
	Use:   "sum [file a] [file b] [outfile]",
	Short: "Write the sum of two files (a+b).",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return generic.Sum(args[0], args[1], args[2])
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff [file a] [file b] [outfile]",
	Short: "Write the difference of two files (a-b).",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return generic.Diff(args[0], args[1], args[2])
	},
}

var concatCmd = &cobra.Command{
	Use:   "concat [infile]... [outfile]",
	Short: "Concatenate files along the time axis.",
	Long: `Concatenate files along the time axis. The input files must be in
chronological order; where they overlap, the later file wins.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return generic.Concat(args[:len(args)-1], args[len(args)-1])
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract [infile] [outfile]",
	Short: "Extract a window of time steps and/or a subset of items.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		startStr, _ := cmd.Flags().GetString("start")
		endStr, _ := cmd.Flags().GetString("end")
		items, _ := cmd.Flags().GetStringSlice("items")
		start, err := parseBound(startStr)
		if err != nil {
			return fmt.Errorf("parsing start: %w", err)
		}
		end, err := parseBound(endStr)
		if err != nil {
			return fmt.Errorf("parsing end: %w", err)
		}
		return generic.Extract(args[0], args[1], start, end, parseItems(items))
	},
}

var avgCmd = &cobra.Command{
	Use:   "avg [infile] [outfile]",
	Short: "Write the temporal average of a file.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		skipna, _ := cmd.Flags().GetBool("skipna")
		return generic.AvgTime(args[0], args[1], skipna)
	},
}

var quantileCmd = &cobra.Command{
	Use:   "quantile [infile] [outfile]",
	Short: "Write temporal quantiles of a file.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qs, _ := cmd.Flags().GetFloat64Slice("q")
		bufferSize, _ := cmd.Flags().GetFloat64("buffer-size")
		return generic.Quantile(args[0], args[1], qs, bufferSize)
	},
}

var meshCmd = &cobra.Command{
	Use:   "mesh [infile] [outfile]",
	Short: "Export the mesh geometry of a 2D file to an ASCII mesh file.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := dfsu.Open(args[0])
		if err != nil {
			return err
		}
		return f.ToMesh(args[1])
	},
}
