package ingestion

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
)

// describeFailure はファイル単位の失敗を利用者向けのメッセージに変換する
func describeFailure(filePath string, err error) string {
	switch {
	case isTLSError(err):
		return fmt.Sprintf("SSL failure for %s: %v", filePath, err)
	case isTimeout(err):
		return fmt.Sprintf("Timeout occurred for %s: %v", filePath, err)
	case isConnectionError(err):
		return fmt.Sprintf("Connection failed for %s: %v", filePath, err)
	default:
		return fmt.Sprintf("Unexpected error with %s: %v", filePath, err)
	}
}

// attachFailure はアップロード済みだが紐付けに失敗したファイルのメッセージ
func attachFailure(filePath, fileID string, err error) string {
	return fmt.Sprintf("Failed to attach file '%s' (file_id=%s) to Vector Store: %v", filePath, fileID, err)
}

func isTLSError(err error) bool {
	var recordErr tls.RecordHeaderError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var certErr *tls.CertificateVerificationError
	return errors.As(err, &recordErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &certErr)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	return errors.As(err, &opErr) || errors.As(err, &dnsErr)
}
