package main

import (
	"io"
	"os"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/alecthomas/kong"
	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"

	"github.com/corpustools/syntok"
)

var cli struct {
	Compile struct {
		Rules    string `kong:"required,short='i',help='The synonym rule file'"`
		Output   string `kong:"required,short='o',help='The compiled rule store file'"`
		Format   string `kong:"default='solr',enum='solr,wordnet',help='Format of the rule file (solr, wordnet)'"`
		Fold     bool   `kong:"help='Case fold rules and matching'"`
		NoExpand bool   `kong:"help='Map equivalent phrases to the first entry only'"`
		Matrix   bool   `kong:"help='Compile to the matrix representation'"`
	} `kong:"cmd,help='Compile a synonym rule file into a rule store'"`

	Run struct {
		Store     string `kong:"required,short='s',help='The compiled rule store file'"`
		Offsets   bool   `kong:"short='o',help='Print token offsets'"`
		Types     bool   `kong:"short='t',help='Print token types'"`
		Positions bool   `kong:"short='p',help='Print token positions'"`
		Stats     bool   `kong:"help='Dump processing metrics to STDERR'"`
	} `kong:"cmd,help='Expand synonyms in text read from STDIN'"`

	Repl struct {
		Store     string `kong:"required,short='s',help='The compiled rule store file'"`
		Offsets   bool   `kong:"short='o',help='Print token offsets'"`
		Types     bool   `kong:"short='t',help='Print token types'"`
		Positions bool   `kong:"short='p',help='Print token positions'"`
	} `kong:"cmd,help='Expand synonyms interactively'"`
}

// Main method for command line handling
func main() {

	// Parse command line parameters
	parser := kong.Must(
		&cli,
		kong.Name("syntok"),
		kong.Description("Multi-word synonym expansion for token streams"),
		kong.UsageOnError(),
	)

	ctx, err := parser.Parse(os.Args[1:])

	parser.FatalIfErrorf(err)

	switch ctx.Command() {
	case "compile":
		compile()
	case "run":
		run()
	case "repl":
		repl()
	}
}

func compile() {
	rs := syntok.NewRuleSet(cli.Compile.Fold, true)

	var err error
	if cli.Compile.Format == "wordnet" {
		err = rs.LoadWordNetFile(cli.Compile.Rules, !cli.Compile.NoExpand)
	} else {
		err = rs.LoadSolrFile(cli.Compile.Rules, !cli.Compile.NoExpand)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Unable to read rules")
	}

	auto, err := rs.Build()
	if err != nil {
		log.Fatal().Err(err).Msg("Unable to build rules")
	}

	if cli.Compile.Matrix {
		mat := auto.ToMatrix()
		if _, err := mat.Save(cli.Compile.Output); err != nil {
			log.Fatal().Err(err).Msg("Unable to save rule store")
		}
		return
	}

	dat := auto.ToDoubleArray()
	log.Info().
		Int("rules", rs.Size()).
		Int("transitions", dat.TransCount()).
		Float64("loadFactor", dat.LoadFactor()).
		Msg("Compiled double array")
	if _, err := dat.Save(cli.Compile.Output); err != nil {
		log.Fatal().Err(err).Msg("Unable to save rule store")
	}
}

func writerBits(offsets, types, positions bool) syntok.Bits {
	flags := syntok.SIMPLE
	if offsets {
		flags |= syntok.OFFSETS
	}
	if types {
		flags |= syntok.TYPES
	}
	if positions {
		flags |= syntok.POSITIONS
	}
	return flags
}

func run() {
	rules, err := syntok.LoadRuleFile(cli.Run.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Unable to load rule store")
	}

	text, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Fatal().Err(err).Msg("Unable to read input")
	}

	filter, err := syntok.NewSynonymFilter(syntok.NewWordTokenizer(string(text)), rules)
	if err != nil {
		log.Fatal().Err(err).Msg("Unable to create filter")
	}

	tw := syntok.NewTokenWriter(os.Stdout, writerBits(cli.Run.Offsets, cli.Run.Types, cli.Run.Positions))
	if err := syntok.Pipe(filter, tw); err != nil {
		log.Fatal().Err(err).Msg("Unable to process stream")
	}

	if cli.Run.Stats {
		metrics.WritePrometheus(os.Stderr, false)
	}
}

func repl() {
	rules, err := syntok.LoadRuleFile(cli.Repl.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Unable to load rule store")
	}

	z := syntok.NewWordTokenizer("")
	filter, err := syntok.NewSynonymFilter(z, rules)
	if err != nil {
		log.Fatal().Err(err).Msg("Unable to create filter")
	}

	tw := syntok.NewTokenWriter(os.Stdout, writerBits(cli.Repl.Offsets, cli.Repl.Types, cli.Repl.Positions))

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	for {
		line, err := ln.Prompt("syntok> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			break
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Unable to read line")
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)

		z.SetText(line)
		if err := filter.Reset(); err != nil {
			log.Fatal().Err(err).Msg("Unable to reset filter")
		}
		if err := syntok.Pipe(filter, tw); err != nil {
			log.Error().Err(err).Msg("Unable to process line")
		}
	}
}
