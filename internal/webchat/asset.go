package webchat

import _ "embed"

// WidgetJS is the embeddable widget script served from /chat/widget.js.
//
//go:embed widget.js
var WidgetJS []byte
