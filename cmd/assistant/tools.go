package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-study-assistant/internal/extract"
	httpapi "github.com/tbourn/go-study-assistant/internal/http"
	"github.com/tbourn/go-study-assistant/internal/repo"
	"github.com/tbourn/go-study-assistant/internal/sysutil"
)

const previewRunes = 500

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the SQLite schema and purge expired idempotency records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cfg.DBPath)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			purged, err := repo.PurgeExpiredIdempotency(cmd.Context(), db, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("purge idempotency: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s (%d expired idempotency records purged)\n", cfg.DBPath, purged)
			return nil
		},
	}
}

func newExtractCmd() *cobra.Command {
	var declared string
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract text from a PDF, DOC or DOCX file the way uploads do",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			typ := declared
			if typ == "" {
				typ = detectType(data, args[0])
			}
			if !extract.Supported(typ) {
				return fmt.Errorf("unsupported type %q", typ)
			}
			res, err := extract.Extract(data, typ)
			if err != nil {
				var ue *extract.UnreadableError
				if errors.As(err, &ue) {
					return fmt.Errorf("unreadable %s: %w", ue.Type, ue.Err)
				}
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "type:   %s\n", typ)
			fmt.Fprintf(out, "pages:  %d\n", res.Pages)
			fmt.Fprintf(out, "length: %d\n\n", utf8.RuneCountInString(res.Text))
			fmt.Fprintln(out, preview(res.Text, previewRunes))
			return nil
		},
	}
	cmd.Flags().StringVar(&declared, "type", "", "declared MIME type (detected from content when empty)")
	return cmd
}

// detectType sniffs the content and falls back to the extension, since
// legacy .doc files only sniff as a generic OLE container.
func detectType(data []byte, name string) string {
	m := mimetype.Detect(data)
	for _, t := range []string{extract.MimePDF, extract.MimeDOCX, extract.MimeDOC} {
		if m.Is(t) {
			return t
		}
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return extract.MimePDF
	case ".docx":
		return extract.MimeDOCX
	case ".doc":
		return extract.MimeDOC
	}
	return m.String()
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

func newAskCmd() *cobra.Command {
	var apiKey string
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Run one tutor chat turn against the configured backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			backend, err := newBackend(cfg.LLM, apiKey)
			if err != nil {
				return err
			}
			chat, _, _ := httpapi.Services(httpapi.Deps{LLM: backend}, cfg)
			reply, err := chat.Converse(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
			if reply.Escalated {
				fmt.Fprintln(cmd.ErrOrStderr(), "(escalation suggested)")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Gemini API key (defaults to GEMINI_API_KEY)")
	return cmd
}

func firstKey(vals ...string) string {
	return strings.TrimSpace(sysutil.FirstNonEmpty(vals...))
}
