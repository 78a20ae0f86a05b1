// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package diag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Render formats err for display. Diagnostics with a source position get a
// numbered snippet of src with a caret under the offending column; any other
// error is rendered by its Error method alone.
func Render(err error, src string, colored bool) string {
	if err == nil {
		return ""
	}
	header := color.New(color.FgRed, color.Bold)
	caret := color.New(color.FgGreen, color.Bold)
	if colored {
		header.EnableColor()
		caret.EnableColor()
	} else {
		header.DisableColor()
		caret.DisableColor()
	}

	var de Error
	if !errors.As(err, &de) || !de.Position().IsValid() {
		return header.Sprint(err.Error())
	}
	pos := de.Position()

	var b strings.Builder
	b.WriteString(header.Sprint(err.Error()))
	b.WriteString("\n\n")

	lines := strings.Split(src, "\n")
	line := clamp(pos.Line, 1, len(lines))
	width := len(fmt.Sprint(clamp(line+1, 1, len(lines))))

	for n := line - 1; n <= line+1; n++ {
		if n < 1 || n > len(lines) {
			continue
		}
		text := strings.TrimRight(lines[n-1], "\r")
		fmt.Fprintf(&b, "  %*d | %s\n", width, n, text)
		if n == line {
			col := clamp(pos.Column, 1, len(text)+1)
			pad := strings.Repeat(" ", width+2)
			fmt.Fprintf(&b, "%s | %s%s\n", pad, caretPadding(text, col), caret.Sprint("^"))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// caretPadding keeps tabs so the caret lines up with the echoed source.
func caretPadding(text string, col int) string {
	var b strings.Builder
	for i := 0; i < col-1 && i < len(text); i++ {
		if text[i] == '\t' {
			b.WriteByte('\t')
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
