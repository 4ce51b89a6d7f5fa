package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lattice/internal/packages"
)

var initCmd = &cobra.Command{
	Use:   "init [module-path]",
	Short: "Scaffold a new Lattice project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modulePath := ""
		if len(args) > 0 {
			modulePath = args[0]
		}
		return initProject(modulePath)
	},
}

// initProject writes a fresh lattice.toml plus a small starter program,
// grounded on sentra's own InitCommand (sentra.json + main.sn + README)
// but retargeted at lattice.toml/main.lc with demo code that exercises
// this language's own features (phases, spawn/channels) instead of the
// teacher's emoji-banner "hello world".
func initProject(modulePath string) error {
	if modulePath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		modulePath = filepath.Base(cwd)
	}

	pm := packages.NewPackageManager(".")
	if err := pm.InitModule(modulePath); err != nil {
		return err
	}

	if err := os.MkdirAll("src", 0755); err != nil {
		return err
	}
	if err := os.MkdirAll("tests", 0755); err != nil {
		return err
	}

	mainPath := filepath.Join("src", "main.lc")
	if _, err := os.Stat(mainPath); os.IsNotExist(err) {
		if err := os.WriteFile(mainPath, []byte(starterProgram), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", mainPath, err)
		}
	}

	testPath := filepath.Join("tests", "example_test.lc")
	if _, err := os.Stat(testPath); os.IsNotExist(err) {
		if err := os.WriteFile(testPath, []byte(starterTest), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", testPath, err)
		}
	}

	if _, err := os.Stat(".gitignore"); os.IsNotExist(err) {
		os.WriteFile(".gitignore", []byte(gitignoreContents), 0644)
	}
	if _, err := os.Stat("README.md"); os.IsNotExist(err) {
		os.WriteFile("README.md", []byte(fmt.Sprintf(readmeTemplate, modulePath)), 0644)
	}

	fmt.Printf("Initialized %s in %s\n", modulePath, mustAbs("."))
	return nil
}

func mustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

const starterProgram = `fn greet(name) {
    return "hello, " + name
}

log(greet("lattice"))

let total = freeze(21 + 21)
log(total)

let ch = channel()
spawn(fn() => {
    send(ch, 42)
})
let received = recv(ch)
log(received)

try {
    throw "example fault"
} catch (err) {
    log("caught: " + err)
}
`

const starterTest = `let result = 1 + 1
assert(result == 2, "1 + 1 should equal 2")
`

const gitignoreContents = `/lattice_modules/
*.lock.bak
`

const readmeTemplate = `# %s

A Lattice project.

## Usage

` + "```" + `
lattice run src/main.lc
lattice test
lattice install
` + "```" + `
`
