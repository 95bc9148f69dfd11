// Package mbox implements an Extractor for mailbox exports of bank alert and statement emails.
package mbox

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"strings"

	gombox "github.com/emersion/go-mbox"
	"github.com/pkg/errors"

	"github.com/redcoatwright/privatebooks/pkg/api"
	"github.com/redcoatwright/privatebooks/pkg/extractor"
	"github.com/redcoatwright/privatebooks/pkg/extractor/statement"
)

// Name identifies this extractor in the plugin registry.
const Name = "mbox"

// maxPartDepth bounds nested multipart recursion.
const maxPartDepth = 4

// Config holds configuration for the mbox extractor.
type Config struct {
	// IDs mints transaction ids. Defaults to extractor.RandomID.
	IDs extractor.IDGenerator
}

// Extractor reads every message of an mbox file and scans its plain-text body
// with the statement line rules.
type Extractor struct {
	lines  *statement.Extractor
	logger *slog.Logger
}

// New creates a new mbox extractor.
func New(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		lines:  statement.New(statement.Config{IDs: cfg.IDs}, logger),
		logger: logger,
	}
}

// Name returns the extractor name.
func (e *Extractor) Name() string { return Name }

// Extract opens the mailbox at path and parses it.
func (e *Extractor) Extract(ctx context.Context, path string) ([]api.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening mailbox")
	}
	defer f.Close()

	return e.Parse(ctx, f)
}

// Parse reads messages from r. Messages that cannot be decoded are skipped.
func (e *Extractor) Parse(ctx context.Context, r io.Reader) ([]api.Transaction, error) {
	mr := gombox.NewReader(r)

	var txns []api.Transaction
	messages, skipped := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := mr.NextMessage()
		if err == io.EOF {
			break
		}
		if err != nil {
			if messages == 0 {
				return nil, errors.Wrap(err, "reading mailbox")
			}
			e.logger.Warn("stopping at unreadable message", "message", messages+1, "error", err)
			break
		}
		messages++

		body, err := plainTextBody(raw)
		if err != nil {
			e.logger.Debug("skipping message", "message", messages, "error", err)
			skipped++
			continue
		}
		txns = append(txns, e.lines.ParseText(body)...)
	}

	if messages == 0 {
		return nil, extractor.ErrEmptyDocument
	}

	e.logger.Info("parsed mailbox", "messages", messages, "skipped", skipped, "transactions", len(txns))
	return txns, nil
}

// plainTextBody returns the first text/plain body of a message.
func plainTextBody(r io.Reader) (string, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return "", errors.Wrap(err, "reading message")
	}
	return findPlainText(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body, 0)
}

func findPlainText(contentType, encoding string, body io.Reader, depth int) (string, error) {
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", errors.Wrapf(err, "parsing content type %q", contentType)
	}

	switch {
	case mediaType == "text/plain":
		data, err := io.ReadAll(decode(encoding, body))
		if err != nil {
			return "", errors.Wrap(err, "decoding body")
		}
		return string(data), nil

	case strings.HasPrefix(mediaType, "multipart/") && depth < maxPartDepth:
		mr := multipart.NewReader(body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", errors.Wrap(err, "reading multipart body")
			}
			text, err := findPlainText(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part, depth+1)
			if err == nil {
				return text, nil
			}
		}
	}

	return "", errors.Errorf("no text/plain body in %s", mediaType)
}

func decode(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}
