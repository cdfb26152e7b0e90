package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/zhouzirui/eddez/backend/internal/model/chat"
)

// renderReply 以纯文本展示助手回复，链接用尖括号标出，按钮单独成行
func renderReply(w io.Writer, reply *chat.Reply, supportURL string) {
	if reply == nil {
		return
	}

	var b strings.Builder
	for _, seg := range reply.Segments {
		if seg.URL != "" {
			b.WriteString("<" + seg.URL + ">")
			continue
		}
		b.WriteString(seg.Text)
	}
	if len(reply.Segments) == 0 {
		b.WriteString(reply.Text)
	}
	fmt.Fprintf(w, "assistant> %s\n", b.String())

	if reply.Button != nil {
		fmt.Fprintf(w, "  [%s] %s\n", reply.Button.Name, reply.Button.URL)
	}
	if reply.WantsHumanSupport {
		if supportURL != "" {
			fmt.Fprintf(w, "  [Contact Human Support] %s\n", supportURL)
		} else {
			fmt.Fprintln(w, "  [Contact Human Support]")
		}
	}
}

func printMessage(w io.Writer, msg chat.Message) {
	switch msg.Role {
	case chat.RoleAssistant:
		if msg.Reply != nil {
			renderReply(w, msg.Reply, "")
			return
		}
		fmt.Fprintf(w, "assistant> %s\n", msg.Content)
	default:
		marker := ""
		if msg.Failed() {
			marker = " (failed, /retry " + msg.ID + ")"
		}
		fmt.Fprintf(w, "you> %s%s\n", msg.Content, marker)
	}
}
