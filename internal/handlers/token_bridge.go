package handlers

import (
	"html/template"
)

// tokenBridgeTemplate stores the session in the embedding frontend and
// redirects to the role's dashboard.
var tokenBridgeTemplate = template.Must(template.New("token-bridge").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>UpConsent</title>
</head>
<body>
<script>
try {
  localStorage.setItem("token", {{.Token}});
  localStorage.setItem("user", {{.UserJSON}});
} catch (e) {}
window.location.replace({{.RedirectURL}});
</script>
<p>Redirecting to <a href="{{.RedirectURL}}">your dashboard</a>.</p>
</body>
</html>
`))

var tokenErrorTemplate = template.Must(template.New("token-error").Parse(`<div class="upconsent-error">
<h3>Unable to sign in</h3>
<p>{{.Message}}</p>
</div>
`))

type tokenBridgeData struct {
	Token       string
	UserJSON    string
	RedirectURL string
}

type tokenErrorData struct {
	Message string
}
