package output

import (
	"io"
)

// TextHandler renders items as human-readable text using a Printer.
type TextHandler[T any] struct {
	out     io.Writer
	printer Printer[T]
}

func NewTextHandler[T any](w io.Writer, p Printer[T]) *TextHandler[T] {
	return &TextHandler[T]{
		out:     w,
		printer: p,
	}
}

// Writer returns the underlying io.Writer where text will be written.
func (h *TextHandler[T]) Writer() io.Writer {
	return h.out
}

func (h *TextHandler[T]) HandleResults(items ...T) error {
	if len(items) == 0 {
		_, _ = io.WriteString(h.out, "No items found\n")
		return nil
	}

	h.printer.Header(h.out, len(items))

	for _, it := range items {
		if err := h.printer.Item(h.out, it); err != nil {
			return err
		}
	}

	h.printer.Footer(h.out, len(items))

	return nil
}

func (h *TextHandler[T]) HandleError(err error) error {
	return err
}

// FuncPrinter is a Printer assembled from optional functions.
// Nil functions are skipped.
type FuncPrinter[T any] struct {
	HeaderFn WriteFunc[T]
	ItemFn   func(w io.Writer, elem T) error
	FooterFn WriteFunc[T]
}

func (p FuncPrinter[T]) Header(w io.Writer, count int) {
	if p.HeaderFn != nil {
		p.HeaderFn(w, count)
	}
}

func (p FuncPrinter[T]) Item(w io.Writer, elem T) error {
	if p.ItemFn != nil {
		return p.ItemFn(w, elem)
	}
	return nil
}

func (p FuncPrinter[T]) Footer(w io.Writer, count int) {
	if p.FooterFn != nil {
		p.FooterFn(w, count)
	}
}
