package api

import (
	"html/template"
	"net/http"
	"strings"
)

// faviconPNG is a 16x16 transparent PNG served so browsers stop asking.
var faviconPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff, 0x61, 0x00, 0x00, 0x00,
	0x19, 0x74, 0x45, 0x58, 0x74, 0x53, 0x6f, 0x66, 0x74, 0x77, 0x61, 0x72,
	0x65, 0x00, 0x41, 0x64, 0x6f, 0x62, 0x65, 0x20, 0x49, 0x6d, 0x61, 0x67,
	0x65, 0x52, 0x65, 0x61, 0x64, 0x79, 0x71, 0xc9, 0x65, 0x3c, 0x00, 0x00,
	0x00, 0x0e, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda, 0x62, 0x00, 0x02, 0x00,
	0x00, 0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xdb, 0x00, 0x00, 0x00, 0x00,
	0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

var callbackPageTmpl = template.Must(template.New("callback").Parse(`<html>
<head><title>{{.ProviderTitle}} Auth</title></head>
<body>
<script>
window.location.href = '/auth/{{.Provider}}/success?' + {{if .Error}}'error=' + encodeURIComponent({{.Error}}){{else}}'code=' + encodeURIComponent({{.Code}}){{end}};
</script>
</body>
</html>
`))

var successPageTmpl = template.Must(template.New("success").Parse(`<html>
<head><title>DesignX - {{.ProviderTitle}} Auth {{if .Error}}Failed{{else}}Success{{end}}</title></head>
<body>
{{if .Error}}<h1>Authentication Failed</h1>
<p>Error: {{.Error}}</p>{{else}}<h1>{{.ProviderTitle}} Connected Successfully!</h1>
<p>You can now close this window and return to the extension.</p>{{end}}
<script>
if (window.opener) {
    window.opener.postMessage({{if .Error}}{ type: {{.MessageType}}, error: {{.Error}} }{{else}}{ type: {{.MessageType}}, code: {{.Code}} }{{end}}, '*');
}
setTimeout(function () { window.close(); }, {{if .Error}}3000{{else}}1000{{end}});
</script>
</body>
</html>
`))

type authPageData struct {
	Provider      string
	ProviderTitle string
	MessageType   string
	Code          string
	Error         string
}

func pageData(provider, code, errParam string) authPageData {
	suffix := "_AUTH_SUCCESS"
	if errParam != "" {
		suffix = "_AUTH_ERROR"
	}
	return authPageData{
		Provider:      provider,
		ProviderTitle: strings.ToUpper(provider[:1]) + provider[1:],
		MessageType:   strings.ToUpper(provider) + suffix,
		Code:          code,
		Error:         errParam,
	}
}

func renderCallbackPage(w http.ResponseWriter, provider, code, errParam string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = callbackPageTmpl.Execute(w, pageData(provider, code, errParam))
}

func renderSuccessPage(w http.ResponseWriter, provider, code, errParam string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = successPageTmpl.Execute(w, pageData(provider, code, errParam))
}
