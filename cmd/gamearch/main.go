// Command gamearch manipulates game archive files from the command
// line: identifying, listing, extracting, inserting, renaming and
// deleting entries across every supported format.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	gamearchive "github.com/retrodos/gamearchive"
	"github.com/retrodos/gamearchive/stream"
)

var (
	formatCode string
	outputName string
)

func main() {
	root := &cobra.Command{
		Use:           "gamearch",
		Short:         "Manipulate DOS game archive files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&formatCode, "type", "t", "",
		"force an archive format instead of autodetecting")

	root.AddCommand(
		formatsCmd(),
		filtersCmd(),
		identifyCmd(),
		listCmd(),
		extractCmd(),
		insertCmd(),
		deleteCmd(),
		renameCmd(),
	)

	if err := root.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func formatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported archive formats",
		Run: func(cmd *cobra.Command, args []string) {
			for _, f := range gamearchive.Formats() {
				fmt.Printf("%-16s %s (%s)\n", f.Code(), f.FriendlyName(),
					strings.Join(f.Games(), ", "))
			}
		},
	}
}

func filtersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "List supported compression and encryption filters",
		Run: func(cmd *cobra.Command, args []string) {
			for _, f := range gamearchive.Filters() {
				fmt.Printf("%-16s %s\n", f.Code(), f.FriendlyName())
			}
		},
	}
}

func identifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identify ARCHIVE",
		Short: "Detect which format an archive file is in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			s, err := stream.NewFile(f)
			if err != nil {
				return err
			}
			format, certainty, err := gamearchive.Identify(s)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s [%s] (certainty: %s)\n",
				args[0], format.FriendlyName(), format.Code(), certainty)
			return nil
		},
	}
}

// openArchive opens the named file, resolves its format and any
// supplementary streams, and returns the archive ready for use.
func openArchive(name string, writable bool) (gamearchive.Archive, func(), error) {
	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR
	}
	f, err := os.OpenFile(name, flags, 0)
	if err != nil {
		return nil, nil, err
	}
	closers := []io.Closer{f}
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	s, err := stream.NewFile(f)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	var format gamearchive.Format
	if formatCode != "" {
		if format = gamearchive.FormatByCode(formatCode); format == nil {
			closeAll()
			return nil, nil, fmt.Errorf("unknown format code %q", formatCode)
		}
	} else if format, _, err = gamearchive.Identify(s); err != nil {
		closeAll()
		return nil, nil, err
	}

	supp := gamearchive.SuppData{}
	for item, suppName := range format.RequiredSupps(s, name) {
		sf, err := os.OpenFile(filepath.Join(filepath.Dir(name), filepath.Base(suppName)), flags, 0)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("opening supplementary file for %s: %w", name, err)
		}
		closers = append(closers, sf)
		ss, err := stream.NewFile(sf)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		supp[item] = ss
	}

	arch, err := format.Open(s, supp)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return arch, closeAll, nil
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list ARCHIVE",
		Short: "List the files inside an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, done, err := openArchive(args[0], false)
			if err != nil {
				return err
			}
			defer done()
			for i, e := range arch.Files() {
				name := e.Name
				if name == "" {
					name = fmt.Sprintf("@%d", i)
				}
				attrs := ""
				if e.Attr&gamearchive.AttrCompressed != 0 {
					attrs += "C"
				}
				if e.Attr&gamearchive.AttrEncrypted != 0 {
					attrs += "E"
				}
				if e.Attr&gamearchive.AttrFolder != 0 {
					attrs += "D"
				}
				fmt.Printf("%-20s %10d %10d %-2s %s\n",
					name, e.StoredSize, e.RealSize, attrs, e.Filter)
			}
			return nil
		},
	}
}

// findEntry resolves NAME or @INDEX against the archive.
func findEntry(arch gamearchive.Archive, name string) (*gamearchive.Entry, error) {
	if strings.HasPrefix(name, "@") {
		var idx int
		if _, err := fmt.Sscanf(name, "@%d", &idx); err == nil {
			files := arch.Files()
			if idx >= 0 && idx < len(files) {
				return files[idx], nil
			}
		}
		return nil, fmt.Errorf("no entry %s", name)
	}
	e := arch.Find(name)
	if e == nil {
		return nil, fmt.Errorf("no entry named %q", name)
	}
	return e, nil
}

func extractCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "extract ARCHIVE NAME",
		Short: "Extract one file from an archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, done, err := openArchive(args[0], false)
			if err != nil {
				return err
			}
			defer done()
			e, err := findEntry(arch, args[1])
			if err != nil {
				return err
			}
			src, err := arch.Open(e, true)
			if err != nil {
				return err
			}
			outName := outputName
			if outName == "" {
				outName = args[1]
			}
			out, err := os.Create(outName)
			if err != nil {
				return err
			}
			defer out.Close()
			if _, err := io.Copy(out, src); err != nil {
				return err
			}
			return nil
		},
	}
	c.Flags().StringVarP(&outputName, "output", "o", "", "write to this filename")
	return c
}

func insertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insert ARCHIVE NAME LOCALFILE",
		Short: "Add a local file to an archive",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			arch, done, err := openArchive(args[0], true)
			if err != nil {
				return err
			}
			defer done()
			e, err := arch.Insert(nil, args[1], int64(len(data)), gamearchive.TypeGeneric, 0)
			if err != nil {
				return err
			}
			dst, err := arch.Open(e, true)
			if err != nil {
				return err
			}
			if _, err := dst.Write(data); err != nil {
				return err
			}
			if err := dst.Flush(); err != nil {
				return err
			}
			return arch.Flush()
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ARCHIVE NAME",
		Short: "Remove a file from an archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, done, err := openArchive(args[0], true)
			if err != nil {
				return err
			}
			defer done()
			e, err := findEntry(arch, args[1])
			if err != nil {
				return err
			}
			if err := arch.Remove(e); err != nil {
				return err
			}
			return arch.Flush()
		},
	}
}

func renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename ARCHIVE OLD NEW",
		Short: "Rename a file inside an archive",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, done, err := openArchive(args[0], true)
			if err != nil {
				return err
			}
			defer done()
			e, err := findEntry(arch, args[1])
			if err != nil {
				return err
			}
			if err := arch.Rename(e, args[2]); err != nil {
				return err
			}
			return arch.Flush()
		},
	}
}
