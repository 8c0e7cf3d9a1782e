package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mikey/email-triage/internal/adapters/intake"
	"github.com/mikey/email-triage/internal/adapters/mailfile"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/di"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(intake.ExitPipelineError)
	}

	code := intake.ExitOK
	err = container.Invoke(func(cli *intake.CliIntake, classifier core.Classifier, logger *zap.Logger) {
		defer logger.Sync()
		code = run(flags, cli, logger)

		if closer, ok := classifier.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close classifier", zap.Error(err))
			}
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(intake.ExitPipelineError)
	}

	os.Exit(code)
}

func run(flags *di.CLIFlags, cli *intake.CliIntake, logger *zap.Logger) int {
	ctx := context.Background()

	attachments, err := di.ReadAttachments(flags.Attachments)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return intake.ExitDecodeError
	}

	if flags.InputFile != "" {
		logger.Info("Reading email from file", zap.String("file", flags.InputFile))
		_, err = cli.ProcessFile(ctx, flags.InputFile, attachments)
	} else {
		logger.Info("Reading email from stdin")
		var email *core.Email
		email, err = mailfile.ParseMessage(os.Stdin)
		if err != nil {
			err = &core.DecodeError{Path: "-", Err: err}
		} else {
			email.Attachments = append(attachments, email.Attachments...)
			_, err = cli.ProcessEmail(ctx, email)
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return intake.ExitCode(err)
}
