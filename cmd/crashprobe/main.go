// Command crashprobe samples one extract (local file or URL) and prints its
// column shape compared against the star schema. Use it to vet a fresh portal
// download before wiring it into a pipeline config.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"unicode/utf8"

	"crashdw/internal/datasource"
	"crashdw/internal/probe"
	"crashdw/internal/star"
)

var (
	flagLocation = flag.String("location", "", "extract to sample: local path or http(s) URL")
	flagRows     = flag.Int("rows", 1000, "max data rows to sample")
	flagComma    = flag.String("comma", ",", "field delimiter (single character)")
	flagNoSchema = flag.Bool("no-schema", false, "skip the schema coverage comparison")
)

func main() {
	flag.Parse()
	if *flagLocation == "" {
		fmt.Fprintln(os.Stderr, "crashprobe: -location is required")
		os.Exit(2)
	}

	comma := ','
	if *flagComma != "" {
		if r, _ := utf8.DecodeRuneInString(*flagComma); r != utf8.RuneError {
			comma = r
		}
	}

	ctx := context.Background()
	src, err := datasource.New(*flagLocation)
	if err != nil {
		fatalf("%v", err)
	}
	rc, err := src.Open(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	defer rc.Close()

	opt := probe.Options{MaxRows: *flagRows, Comma: comma}
	if !*flagNoSchema {
		opt.Schema = star.DefaultSchema()
	}
	rep, err := probe.Sample(rc, opt)
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Print(rep.String())
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "crashprobe: "+format+"\n", a...)
	os.Exit(1)
}
