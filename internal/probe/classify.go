package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/JakeFAU/xllinks/internal/linkcheck"
)

// classifyError maps a failed visit onto the probe failure taxonomy.
func classifyError(err error) linkcheck.OutcomeClass {
	if err == nil {
		return linkcheck.ClassOK
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return linkcheck.ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return linkcheck.ClassTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return linkcheck.ClassTransport
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return linkcheck.ClassTransport
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return linkcheck.ClassTransport
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op != "parse" {
		return linkcheck.ClassTransport
	}
	return linkcheck.ClassProblem
}

// normalizeTitle trims the title and collapses internal whitespace runs.
func normalizeTitle(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
