// Command hlc is the driver around the bytecode backend: it reads a JSON
// AST fixture (standing in for the external front-end, spec §1) or a
// compiled .hlb module, and drives lowering, verification, interpretation,
// and textual disassembly. Modeled on the teacher's cmd/minzc/main.go
// (package-level flag variables, a cobra root command whose subcommands
// each call into one small top-level function, errors printed to stderr
// with a non-zero exit).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oisee/hlbc/pkg/hlastjson"
	"github.com/oisee/hlbc/pkg/hlbin"
	"github.com/oisee/hlbc/pkg/hldump"
	"github.com/oisee/hlbc/pkg/hlhost"
	"github.com/oisee/hlbc/pkg/hlhost/luahost"
	"github.com/oisee/hlbc/pkg/hlinterp"
	"github.com/oisee/hlbc/pkg/hlir"
	"github.com/oisee/hlbc/pkg/hllower"
	"github.com/oisee/hlbc/pkg/hlverify"
	"github.com/oisee/hlbc/pkg/version"
)

var (
	showVersion     bool
	showVersionFull bool

	buildEntry  string
	buildOutput string

	runLuaScript string
)

var rootCmd = &cobra.Command{
	Use:   "hlc",
	Short: "hlc " + version.GetVersion() + " — bytecode backend driver",
	Long: `hlc compiles a type-checked AST fixture to a .hlb bytecode module
and runs or inspects compiled modules.

SUBCOMMANDS:
  build   AST JSON fixture -> .hlb module
  verify  type-check a .hlb module's opcode stream
  run     interpret a .hlb module, starting at its entrypoint
  dump    print a .hlb module in the textual disassembly format

EXAMPLES:
  hlc build program.ast.json -o program.hlb
  hlc verify program.hlb
  hlc run program.hlb
  hlc dump program.hlb`,
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersion())
			return
		}
		if showVersionFull {
			fmt.Println(version.GetFullVersion())
			return
		}
		cmd.Help()
	},
}

var buildCmd = &cobra.Command{
	Use:   "build <ast.json>",
	Short: "lower a JSON AST fixture into a .hlb module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(args[0])
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <module.hlb>",
	Short: "statically verify every function of a .hlb module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify(args[0])
	},
}

var runCmd = &cobra.Command{
	Use:   "run <module.hlb>",
	Short: "interpret a .hlb module starting at its entrypoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(args[0])
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump <module.hlb>",
	Short: "print a .hlb module in the textual disassembly format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDump(args[0])
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version")
	rootCmd.Flags().BoolVar(&showVersionFull, "version-full", false, "show full version info")

	buildCmd.Flags().StringVarP(&buildEntry, "entry", "e", "", `entrypoint method, "Class.method" form (default: a method named "main")`)
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "output .hlb path (default: input name with .hlb extension)")

	runCmd.Flags().StringVar(&runLuaScript, "lua", "", "Lua script defining native handlers (see pkg/hlhost/luahost)")

	rootCmd.AddCommand(buildCmd, verifyCmd, runCmd, dumpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runBuild(astFile string) error {
	data, err := os.ReadFile(astFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", astFile, err)
	}
	file, err := hlastjson.Decode(data)
	if err != nil {
		return err
	}
	m, err := hllower.Lower(file, buildEntry)
	if err != nil {
		return fmt.Errorf("lowering: %w", err)
	}
	if err := hlverify.Verify(m); err != nil {
		return fmt.Errorf("verification: %w", err)
	}
	out, err := hlbin.Write(m)
	if err != nil {
		return fmt.Errorf("writing: %w", err)
	}

	outPath := buildOutput
	if outPath == "" {
		outPath = trimExt(astFile) + ".hlb"
	}
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	return nil
}

func runVerify(modFile string) error {
	m, err := readModule(modFile)
	if err != nil {
		return err
	}
	if err := hlverify.Verify(m); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func runRun(modFile string) error {
	m, err := readModule(modFile)
	if err != nil {
		return err
	}

	var loader hlhost.Loader
	if runLuaScript != "" {
		script, err := os.ReadFile(runLuaScript)
		if err != nil {
			return fmt.Errorf("read %s: %w", runLuaScript, err)
		}
		h := luahost.New()
		defer h.Close()
		if err := h.LoadScript(string(script)); err != nil {
			return fmt.Errorf("lua script %s: %w", runLuaScript, err)
		}
		loader = h
	} else {
		loader = hlhost.MapLoader{}
	}

	result, err := hlinterp.Interp(m, loader)
	if err != nil {
		return err
	}
	fmt.Println(result.String())
	return nil
}

func runDump(modFile string) error {
	m, err := readModule(modFile)
	if err != nil {
		return err
	}
	fmt.Print(hldump.Dump(m))
	return nil
}

func readModule(path string) (*hlir.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	m, err := hlbin.Read(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func trimExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return path
}
