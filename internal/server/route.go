package server

import "fmt"

const (
	statusOK            = "HTTP/1.1 200 OK"
	statusBadRequest    = "HTTP/1.1 400 BAD REQUEST"
	statusNotFound      = "HTTP/1.1 404 NOT FOUND"
	statusInternalError = "HTTP/1.1 500 INTERNAL SERVER ERROR"

	pageHello    = "hello.html"
	pageNotFound = "404.html"
)

// route はリクエスト行からレスポンスを決める
type route struct {
	status string
	page   string
	sleep  bool
}

func resolve(requestLine string) route {
	switch requestLine {
	case "GET / HTTP/1.1":
		return route{status: statusOK, page: pageHello}
	case "GET /sleep HTTP/1.1":
		return route{status: statusOK, page: pageHello, sleep: true}
	case "":
		return route{status: statusBadRequest}
	default:
		return route{status: statusNotFound, page: pageNotFound}
	}
}

// formatResponse はステータス行、Content-Length、本文からレスポンスを組み立てる
func formatResponse(status string, body []byte) []byte {
	resp := fmt.Appendf(nil, "%s\r\nContent-Length: %d\r\n\r\n", status, len(body))
	return append(resp, body...)
}
