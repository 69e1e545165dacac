// Package ui holds the provisioning and control page served by the portal.
package ui

import "embed"

//go:embed index.html app.js style.css
var FS embed.FS
