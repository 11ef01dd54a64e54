// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package report builds download links and the chat reply for result sets
// too large to render inline. The exporter behind the link lives outside
// this service; we only hand it the statement.
package report

import (
	"encoding/base64"
	"fmt"
	"os"
)

// defaultExportBaseURL points at the exporter endpoint that turns an
// encoded statement into a spreadsheet.
const defaultExportBaseURL = "https://bodezy.com/vistas/exportar-reporte.php"

// Builder constructs export links and report replies.
//
// Thread Safety: Builder is a value type; safe to copy and share.
type Builder struct {
	baseURL string
}

// NewBuilder creates a builder using EXPORT_BASE_URL, falling back to the
// production exporter endpoint.
func NewBuilder() Builder {
	baseURL := os.Getenv("EXPORT_BASE_URL")
	if baseURL == "" {
		baseURL = defaultExportBaseURL
	}
	return Builder{baseURL: baseURL}
}

// NewBuilderWithBaseURL creates a builder with an explicit endpoint.
func NewBuilderWithBaseURL(baseURL string) Builder {
	return Builder{baseURL: baseURL}
}

// DownloadURL encodes the statement into an export link.
//
// Description:
//
//	The statement rides in the query parameter as URL-safe base64, so no
//	character in it needs further escaping. Format:
//	<base>?query=<b64>&formato=excel
func (b Builder) DownloadURL(statement string) string {
	encoded := base64.URLEncoding.EncodeToString([]byte(statement))
	return fmt.Sprintf("%s?query=%s&formato=excel", b.baseURL, encoded)
}

// Message renders the chat reply for a report-routed answer: the row count
// and a Markdown download link.
func (b Builder) Message(rowCount int64, statement string) string {
	return fmt.Sprintf(
		"¡Entendido! He encontrado **%d registros**. El resultado es demasiado grande para mostrarlo aquí.\n\n"+
			"Haz clic en el siguiente enlace para descargar el reporte completo:\n\n"+
			"📥 [**Descargar Reporte en Excel**](%s)",
		rowCount, b.DownloadURL(statement))
}
