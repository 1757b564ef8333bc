// Package convert turns binary response logs into their JSON document form,
// one file at a time or a whole directory of *.net captures.
package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"firestige.xyz/netreplay/pkg/response"
)

// LogExt is the file extension of binary capture logs.
const LogExt = ".net"

// sourceName tags converted documents with their producer.
const sourceName = "netreplay convert"

// Converter batch-converts capture logs. The zero value is not usable;
// construct with New.
type Converter struct {
	layout response.Layout
	log    logrus.FieldLogger
}

func New(layout response.Layout, log logrus.FieldLogger) *Converter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Converter{layout: layout, log: log}
}

// DefaultOutputPath derives the output path from the input path by replacing
// its extension with .json.
func DefaultOutputPath(inPath string) string {
	return strings.TrimSuffix(inPath, filepath.Ext(inPath)) + ".json"
}

// Run converts inPath, dispatching on whether it is a file or a directory.
// An empty outPath selects the default for single files and is an error for
// directories.
func (c *Converter) Run(inPath, outPath string) error {
	info, err := os.Stat(inPath)
	if err != nil {
		return fmt.Errorf("input path: %w", err)
	}
	if info.IsDir() {
		if outPath == "" {
			return fmt.Errorf("directory conversion needs an output directory")
		}
		return c.Dir(inPath, outPath)
	}
	if outPath == "" {
		outPath = DefaultOutputPath(inPath)
	}
	return c.File(inPath, outPath)
}

// File converts a single binary log into a JSON document.
func (c *Converter) File(inPath, outPath string) error {
	s, err := response.Open(inPath, response.WithLayout(c.layout), response.WithLogger(c.log))
	if err != nil {
		return fmt.Errorf("cannot open input file: %w", err)
	}
	defer s.Close()

	doc, err := response.Transcode(s, sourceName, inPath)
	if err != nil {
		return fmt.Errorf("converting %s: %w", inPath, err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("cannot create output file: %w", err)
	}
	defer out.Close()

	if err := doc.Encode(out); err != nil {
		return err
	}
	c.log.WithFields(logrus.Fields{
		"input":     inPath,
		"output":    outPath,
		"responses": doc.TotalResponses,
	}).Info("converted")
	return nil
}

// Dir converts every *.net file in inDir into outDir, creating outDir if
// needed. Per-file failures are reported and do not abort the batch; the
// batch fails only when the input directory itself cannot be read.
func (c *Converter) Dir(inDir, outDir string) error {
	entries, err := os.ReadDir(inDir)
	if err != nil {
		return fmt.Errorf("input path: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("cannot create output directory: %w", err)
	}

	var converted, failed int
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), LogExt) {
			continue
		}
		in := filepath.Join(inDir, e.Name())
		out := filepath.Join(outDir, strings.TrimSuffix(e.Name(), LogExt)+".json")
		if err := c.File(in, out); err != nil {
			c.log.WithError(err).WithField("input", in).Error("conversion failed")
			failed++
			continue
		}
		converted++
	}
	c.log.WithFields(logrus.Fields{
		"converted": converted,
		"failed":    failed,
	}).Info("directory conversion finished")
	return nil
}
