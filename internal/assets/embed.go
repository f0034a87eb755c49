// Package assets holds files compiled into the fixposture binary.
package assets

import _ "embed"

// Beep is the bundled alert sound, used until an asset bundle has been
// precached from the update manifest.
//
//go:embed beep.wav
var Beep []byte

// BeepName is the asset name the bundled sound is published under.
const BeepName = "beep.wav"
