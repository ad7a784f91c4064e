package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/s0up4200/go-rrip/internal/fs"
	"github.com/s0up4200/go-rrip/internal/report"
	"github.com/s0up4200/go-rrip/internal/settings"
)

func main() {
	iso := flag.String("iso", "", "path to ISO 9660 image")
	p := flag.String("path", "/", "path inside the image")
	capacity := flag.Int("cap", settings.DefaultMaxFileIDLen, "name and link target capacity")
	flag.Parse()
	if *iso == "" {
		log.Fatal("-iso required")
	}

	s := settings.Default()
	s.MaxFileIDLen = *capacity
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	fsys, err := fs.Open(*iso, s, logger)
	if err != nil {
		log.Fatalf("Open: %v", err)
	}
	defer fsys.Close()

	fmt.Printf("label=%q rockRidge=%v\n", fsys.VolumeLabel(), fsys.RockRidge())

	entries, rec, err := fsys.SystemUseEntries(*p)
	if err != nil {
		fmt.Printf("SystemUseEntries(%s) err: %v\n", *p, err)
		return
	}
	if err := report.WriteSUSPDump(os.Stdout, *p, entries, rec); err != nil {
		fmt.Printf("WriteSUSPDump err: %v\n", err)
		return
	}

	fi, err := fsys.Stat(*p)
	if err != nil {
		fmt.Printf("Stat(%s) err: %v\n", *p, err)
		return
	}
	if !fi.IsDir() {
		return
	}
	children, err := fsys.ReadDir(*p)
	if err != nil {
		fmt.Printf("ReadDir(%s) err: %v\n", *p, err)
		return
	}
	fmt.Printf("children (%d):\n", len(children))
	for _, c := range children {
		fmt.Printf("- %q iso=%q size=%d\n", c.Name(), c.ISOName(), c.Size())
	}
}
