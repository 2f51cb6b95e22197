package api

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	// InvalidFileMessage は PDF 以外が選択された場合のメッセージです。
	InvalidFileMessage = "Please select a valid PDF file"
	emptyFileMessage   = "Please select a PDF file to upload"
	unreadableMessage  = "The selected file could not be read as a PDF"
)

var disableConfigDir sync.Once

// Inspection はアップロード前に確認した PDF の基本情報です。
type Inspection struct {
	Filename string
	Size     int64
	MIME     string
	Pages    int
}

// Inspect はアップロード前にファイルを検証します。
// 空・サイズ超過・PDF 以外・壊れた PDF はいずれも ValidationError で、ネットワークには出ません。
// maxSize が 0 以下の場合はサイズを確認しません。
func Inspect(filename string, data []byte, maxSize int64) (*Inspection, error) {
	size := int64(len(data))
	if size == 0 {
		return nil, NewValidationError(emptyFileMessage)
	}
	if maxSize > 0 && size > maxSize {
		return nil, TooLargeError(maxSize)
	}

	mtype := mimetype.Detect(data)
	if !mtype.Is("application/pdf") {
		return nil, &Error{
			Kind:    KindValidation,
			Message: InvalidFileMessage,
			Err:     fmt.Errorf("detected %s", mtype.String()),
		}
	}

	disableConfigDir.Do(pdfapi.DisableConfigDir)
	pages, err := pdfapi.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: unreadableMessage, Err: err}
	}
	if pages <= 0 {
		return nil, NewValidationError(unreadableMessage)
	}

	name := strings.TrimSpace(filepath.Base(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "document.pdf"
	}

	return &Inspection{
		Filename: name,
		Size:     size,
		MIME:     mtype.String(),
		Pages:    pages,
	}, nil
}

// TooLargeError は maxSize を超えるファイルに対する ValidationError を返します。
func TooLargeError(maxSize int64) error {
	return NewValidationError(fmt.Sprintf("The selected file is too large (max %s)", humanSize(maxSize)))
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.0f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
