package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	dwf "github.com/blacktop/go-dwarf"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/appsworld/machdump"
	"github.com/appsworld/machdump/internal/colors"
)

var (
	// Verbose boolean flag for verbose logging
	Verbose bool
	// Color boolean flag for colorized output
	Color bool

	ran bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "machdump <OBJECT>",
	Short:         "Dump the headers, load commands and symbols of a Mach-O 64-bit object file",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ran = true

		if viper.GetBool("verbose") {
			log.SetLevel(log.DebugLevel)
		}
		if cmd.Flags().Changed("color") {
			colors.Init(&Color)
		}

		f, err := machdump.Open(args[0], machdump.FileConfig{
			Permissive: viper.GetBool("permissive"),
		})
		if err != nil {
			return err
		}
		defer f.Close()

		if viper.GetBool("json") {
			dat, err := json.MarshalIndent(fileView(f), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal object file: %v", err)
			}
			fmt.Println(string(dat))
			return nil
		}

		colors.Bold().Println("HEADER")
		fmt.Println(f.FileHeader.String())
		colors.Bold().Println("LOAD COMMANDS")
		fmt.Print(f.LoadsString())

		if viper.GetBool("symbols") {
			fmt.Println()
			colors.Bold().Println("SYMBOLS")
			if f.Symtab == nil {
				log.Warn("object file contains no LC_SYMTAB")
			} else {
				for _, sym := range f.Symtab.Syms {
					fmt.Println(sym.String(f))
				}
			}
		}

		if viper.GetBool("dwarf") {
			fmt.Println()
			colors.Bold().Println("DWARF COMPILE UNITS")
			if err := dumpCompileUnits(f); err != nil {
				return fmt.Errorf("failed to read DWARF data: %v", err)
			}
		}

		return nil
	},
}

func dumpCompileUnits(f *machdump.File) error {
	df, err := f.DWARF()
	if err != nil {
		return err
	}
	r := df.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return err
		}
		if entry == nil {
			break
		}
		if entry.Tag == dwf.TagCompileUnit {
			name, _ := entry.Val(dwf.AttrName).(string)
			fmt.Printf("0x%08x: %s\n", entry.Offset, name)
		}
		r.SkipChildren()
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(exitCode(err))
	}
}

// exitCode maps each fatal kind to its own status so scripts can tell the
// failures apart.
func exitCode(err error) int {
	var (
		pathErr  *os.PathError
		truncErr *machdump.TruncatedError
		fmtErr   *machdump.FormatError
		cmdErr   *machdump.UnknownCommandError
		seekErr  *machdump.SeekError
	)
	switch {
	case errors.As(err, &pathErr):
		return 3
	case errors.As(err, &truncErr), errors.As(err, &fmtErr):
		return 4
	case errors.As(err, &cmdErr):
		return 5
	case errors.As(err, &seekErr):
		return 6
	}
	if !ran {
		return 2 // usage
	}
	return 1
}

func init() {
	log.SetHandler(clihander.Default)

	// Flags
	rootCmd.Flags().BoolVarP(&Verbose, "verbose", "V", false, "verbose output")
	rootCmd.Flags().BoolVar(&Color, "color", false, "colorize output")
	rootCmd.Flags().BoolP("json", "j", false, "print the decoded file as JSON")
	rootCmd.Flags().BoolP("symbols", "n", false, "print the resolved symbol table")
	rootCmd.Flags().Bool("permissive", false, "keep unrecognized load commands instead of failing")
	rootCmd.Flags().BoolP("dwarf", "w", false, "list DWARF compile units from __debug_* sections")
	viper.BindPFlag("verbose", rootCmd.Flags().Lookup("verbose"))
	viper.BindPFlag("color", rootCmd.Flags().Lookup("color"))
	viper.BindPFlag("json", rootCmd.Flags().Lookup("json"))
	viper.BindPFlag("symbols", rootCmd.Flags().Lookup("symbols"))
	viper.BindPFlag("permissive", rootCmd.Flags().Lookup("permissive"))
	viper.BindPFlag("dwarf", rootCmd.Flags().Lookup("dwarf"))
	viper.BindEnv("color", "CLICOLOR")
	// Settings
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}
