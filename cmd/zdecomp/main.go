// zdecomp decompiles Z-machine story files into JavaScript basic blocks.
package main

import (
	"fmt"
	"os"

	log "github.com/colorfulnotion/zdecomp/log"
	"github.com/colorfulnotion/zdecomp/zvm"
	"github.com/colorfulnotion/zdecomp/zvm/jsenv"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "zdecomp",
		Short: "Z-machine block decompiler",
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	opts := &globalOptions{}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, crit)")
	rootCmd.PersistentFlags().StringVar(&opts.debug, "debug", "", "comma separated modules to debug, or all")
	rootCmd.PersistentFlags().StringVar(&opts.cacheDir, "cache", "", "LevelDB fragment cache directory")
	rootCmd.PersistentFlags().IntVar(&opts.maxBlock, "max-block", 0, "maximum instructions per block")

	var (
		storyPath string
		addr      int64
		maxBlocks int
	)
	addStoryFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&storyPath, "story", "", "story file")
		cmd.Flags().Int64Var(&addr, "addr", -1, "block address (default: initial PC)")
		cmd.MarkFlagRequired("story")
	}

	var blockCmd = &cobra.Command{
		Use:   "block",
		Short: "Print the JavaScript for one basic block",
		Run: func(cmd *cobra.Command, args []string) {
			s := mustOpen(opts, storyPath)
			defer s.Close()
			frag, err := s.d.Fragment(s.entry(addr))
			if err != nil {
				fail(err)
			}
			fmt.Println(frag.Code)
		},
	}
	addStoryFlags(blockCmd)

	var disasmCmd = &cobra.Command{
		Use:   "disasm",
		Short: "Print the decoded instructions of one basic block as a tree",
		Run: func(cmd *cobra.Command, args []string) {
			s := mustOpen(opts, storyPath)
			defer s.Close()
			bb, err := s.d.Disassemble(s.entry(addr))
			if err != nil {
				fail(err)
			}
			fmt.Print(blockTree(bb, s.d.Version()).String())
		},
	}
	addStoryFlags(disasmCmd)

	var checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Compile one basic block in the embedded JavaScript engine",
		Run: func(cmd *cobra.Command, args []string) {
			s := mustOpen(opts, storyPath)
			defer s.Close()
			at := s.entry(addr)
			frag, err := s.d.Fragment(at)
			if err != nil {
				fail(err)
			}
			if _, err := jsenv.Compile(fmt.Sprintf("block_%x", at), frag.Code); err != nil {
				fail(err)
			}
			fmt.Printf("block 0x%x: %d instructions, %d bytes, %s\n", at, frag.Instructions, frag.Next-at, frag.Safety())
		},
	}
	addStoryFlags(checkCmd)

	var scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Decompile every block reachable from the initial PC",
		Run: func(cmd *cobra.Command, args []string) {
			s := mustOpen(opts, storyPath)
			defer s.Close()
			report := scan(s.d, s.d.Bytes(), s.entry(addr), maxBlocks)
			report.Write(os.Stdout)
		},
	}
	addStoryFlags(scanCmd)
	scanCmd.Flags().IntVar(&maxBlocks, "max-blocks", 100000, "stop after this many blocks (0 for no limit)")

	var outPath string
	var dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Write every reachable block as JSON",
		Run: func(cmd *cobra.Command, args []string) {
			s := mustOpen(opts, storyPath)
			defer s.Close()
			entry := s.entry(addr)
			report := scan(s.d, s.d.Bytes(), entry, maxBlocks)
			if err := writeDump(outPath, newFragmentDump(s.d.Version(), entry, report)); err != nil {
				fail(err)
			}
			fmt.Printf("%d blocks written to %s\n", len(report.Fragments), outPath)
		},
	}
	addStoryFlags(dumpCmd)
	dumpCmd.Flags().IntVar(&maxBlocks, "max-blocks", 100000, "stop after this many blocks (0 for no limit)")
	dumpCmd.Flags().StringVar(&outPath, "out", "fragments.json", "output file")

	var fullDiff bool
	var compareCmd = &cobra.Command{
		Use:   "compare OLD NEW",
		Short: "Compare two block dumps",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			same, diff, err := compareDumps(args[0], args[1], fullDiff)
			if err != nil {
				fail(err)
			}
			if !same {
				fmt.Println(diff)
				os.Exit(1)
			}
			fmt.Println("dumps match")
		},
	}

	compareCmd.Flags().BoolVar(&fullDiff, "full", false, "print the whole old dump annotated with changes")

	var consoleCmd = &cobra.Command{
		Use:   "console",
		Short: "Explore a story interactively",
		Run: func(cmd *cobra.Command, args []string) {
			s := mustOpen(opts, storyPath)
			defer s.Close()
			if err := runConsole(s); err != nil {
				fail(err)
			}
		},
	}
	addStoryFlags(consoleCmd)

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("zdecomp %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		},
	}

	rootCmd.AddCommand(blockCmd, disasmCmd, checkCmd, scanCmd, dumpCmd, compareCmd, consoleCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func mustOpen(opts *globalOptions, path string) *story {
	s, err := openStory(opts, path)
	if err != nil {
		fail(err)
	}
	return s
}

func fail(err error) {
	log.Error(log.CLIMonitoring, "zdecomp failed", "err", err)
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// blockTree renders a block as instruction nodes with their operands, store
// variable, branch and inline text as children.
func blockTree(bb *zvm.BasicBlock, version uint8) treeprint.Tree {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("block 0x%x", bb.Addr))
	for _, inst := range bb.Instructions {
		node := tree.AddBranch(fmt.Sprintf("0x%x %s", inst.Addr, inst.Name(version)))
		for i, op := range inst.Operands {
			node.AddNode(fmt.Sprintf("op%d %s", i, op))
		}
		if inst.Result != nil {
			node.AddNode(fmt.Sprintf("store %d", *inst.Result))
		}
		if inst.Branch != nil {
			if target, ok := inst.BranchDestination(); ok {
				node.AddNode(fmt.Sprintf("branch iftrue=%t -> 0x%x", inst.Branch.IfTrue, target))
			} else {
				node.AddNode(fmt.Sprintf("branch iftrue=%t -> return %d", inst.Branch.IfTrue, inst.Branch.Offset))
			}
		}
		if inst.Text != nil {
			node.AddNode(fmt.Sprintf("text 0x%x", *inst.Text))
		}
		if inst.PausesVM {
			node.AddNode("pause")
		}
	}
	return tree
}
