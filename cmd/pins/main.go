package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/config"
	"github.com/stemsi/exampin-backend/internal/database"
	"github.com/stemsi/exampin-backend/internal/export"
	"github.com/stemsi/exampin-backend/internal/logger"
	"github.com/stemsi/exampin-backend/internal/model"
	"github.com/stemsi/exampin-backend/internal/pin"
	"github.com/stemsi/exampin-backend/internal/repository"
	"github.com/stemsi/exampin-backend/internal/service"
	"golang.org/x/term"
)

// Batches at or above this size ask for confirmation on an interactive terminal.
const confirmThreshold = 100

func main() {
	fs := flag.NewFlagSet("pins", flag.ExitOnError)
	examFlag := fs.String("exam", "", "Exam UUID")
	count := fs.Int("count", 0, "Number of pins to generate (5, 10, 20, 50, 100..600)")
	status := fs.String("status", "", "Export filter: unused or used")
	formatFlag := fs.String("format", "csv", "Output format when not printing a table: csv or xlsx")
	out := fs.String("out", "", "Write output to this file instead of stdout")
	fs.Usage = func() { printUsage(fs) }

	if len(os.Args) < 2 {
		printUsage(fs)
		os.Exit(2)
	}
	command := os.Args[1]
	_ = fs.Parse(os.Args[2:])

	cfg := config.Load()
	// stdout carries the pins, so logs go to stderr.
	log := logger.New(os.Stderr, cfg.LogLevel, "pretty")

	format, err := export.ParseFormat(*formatFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid format")
	}

	var examID *uuid.UUID
	if *examFlag != "" {
		id, err := uuid.Parse(*examFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid exam id")
		}
		examID = &id
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	examRepo := repository.NewExamRepository(pool)
	pinService := service.NewPinService(repository.NewPinRepository(pool), examRepo, pin.NewGenerator(), log)

	var pins []model.Pin
	switch command {
	case "generate":
		if examID == nil {
			log.Fatal().Msg("-exam is required")
		}
		if !pin.ValidBatchSize(*count) {
			log.Fatal().Int("count", *count).Ints("allowed", pin.AllowedBatchSizes).Msg("Invalid count")
		}
		if *count >= confirmThreshold && term.IsTerminal(int(os.Stdin.Fd())) && !confirm(*count) {
			log.Warn().Msg("Aborted")
			return
		}
		pins, err = pinService.Generate(ctx, *examID, *count)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to generate pins")
		}
		log.Info().Int("count", len(pins)).Str("exam_id", examID.String()).Msg("Pins generated")
	case "export":
		f := repository.PinFilter{ExamID: examID, Status: model.PinStatus(*status)}
		if f.Status != "" && f.Status != model.PinStatusUnused && f.Status != model.PinStatusUsed {
			log.Fatal().Str("status", *status).Msg("Invalid status")
		}
		pins, err = pinService.All(ctx, f)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list pins")
		}
	default:
		printUsage(fs)
		os.Exit(2)
	}

	if err := emit(pins, format, *out, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to write pins")
	}
}

// emit prints an aligned table to an interactive terminal and the encoded
// format everywhere else.
func emit(pins []model.Pin, format export.Format, out string, log zerolog.Logger) error {
	table := export.PinsTable(pins)

	if out == "" {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return printTable(os.Stdout, table)
		}
		return export.Write(os.Stdout, format, table)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := export.Write(f, format, table); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info().Str("file", out).Int("rows", len(table.Rows)).Msg("Export written")
	return nil
}

func printTable(w io.Writer, t export.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Header, "\t"))
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func confirm(count int) bool {
	fmt.Fprintf(os.Stderr, "Generate %d pins? [y/N]: ", count)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "Usage: pins <generate|export> [flags]")
	fmt.Fprintln(os.Stderr, "  pins generate -exam <uuid> -count 50")
	fmt.Fprintln(os.Stderr, "  pins export -exam <uuid> -status unused -format xlsx -out pins.xlsx")
	fs.PrintDefaults()
}
