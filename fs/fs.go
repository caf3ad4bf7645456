// Package appfs embeds the assets shipped with the binaries: migrations, templates and static files.
package appfs

import "embed"

//go:embed migrations/*.sql templates static
var FS embed.FS
