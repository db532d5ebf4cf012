// Copyright 2025 go-colorrecon Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command colorrecon restores the chrominance of clipped highlights in PNG,
// JPEG and TIFF images.
//
// Usage:
//
//	colorrecon process --threshold 95 --spatial 300 --out-dir out/ photo.tif
//	colorrecon process --config recon.hujson --jobs 4 *.png
//	colorrecon geometry --width 6000 --height 4000 --spatial 400 --range 10
//
// glog flags such as --v and --logtostderr are accepted by every command.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "colorrecon",
		Short:         "Reconstruct the color of overexposed highlights",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// glog only reads its settings once the Go flag set is parsed.
			_ = flag.CommandLine.Parse(nil)
		},
	}
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	root.AddCommand(newProcessCmd(), newGeometryCmd())
	return root
}
