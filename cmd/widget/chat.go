package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/eddez/backend/internal/client"
	"github.com/zhouzirui/eddez/backend/internal/model/settings"
	"github.com/zhouzirui/eddez/backend/internal/service/conversation"
	"github.com/zhouzirui/eddez/backend/internal/service/gateway"
	"github.com/zhouzirui/eddez/backend/internal/service/prompt"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive support chat",
	Long: `Starts a chat session as the given user.

Commands inside the chat:
  /retry [id]        resend the last failed message (or the one with id)
  /new               start a new conversation
  /sessions          list saved conversations
  /open <n|id>       reopen a saved conversation
  /delete <n|id>     delete a saved conversation
  /settings [k=v..]  show or change tone, language and theme
  /quit              leave`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&email, "email", "", "user email")
	chatCmd.Flags().StringVar(&password, "password", "", "log in with this password before chatting")
	_ = chatCmd.MarkFlagRequired("email")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := client.NewKnowledgeCache(api, logger)

	// 登录与知识库拉取互不依赖，并发进行
	userID := email
	g, gctx := errgroup.WithContext(ctx)
	if password != "" {
		g.Go(func() error {
			u, err := api.Login(gctx, email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			userID = u.Email
			return nil
		})
	}
	g.Go(func() error {
		if err := cache.Refresh(gctx); err != nil {
			logger.Warn("initial knowledge fetch failed, continuing with an empty knowledge base", zap.Error(err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	go func() {
		if err := cache.Watch(watchCtx, api.PushURL()); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("knowledge watcher stopped", zap.Error(err))
		}
	}()

	ctrl := newController(cache)
	if err := ctrl.LoadUser(ctx, userID); err != nil {
		return err
	}

	r := &repl{ctrl: ctrl, out: cmd.OutOrStdout(), supportURL: cfg.Widget.SupportURL}
	err := r.run(ctx, cmd.InOrStdin())
	ctrl.Wait()
	return err
}

func newController(cache *client.KnowledgeCache) *conversation.Controller {
	params := gateway.Params{
		Temperature: cfg.Widget.Temperature,
		MaxTokens:   cfg.Widget.MaxTokens,
		TopP:        cfg.Widget.TopP,
	}
	httpClient := api.HTTPClient(cfg.Widget.RequestTimeout)

	endpoints := gateway.Endpoints(api.CompletionURL(), params, httpClient, cfg.Widget.PrimaryModel, cfg.Widget.FallbackModel)
	gw := gateway.New(logger, endpoints...)
	logger.Debug("gateway ready", zap.Strings("endpoints", gw.Endpoints()))

	return conversation.NewController(&conversation.State{}, conversation.Config{
		Composer:     prompt.NewComposer(),
		Gateway:      gw,
		Knowledge:    cache,
		Sessions:     api,
		Settings:     api,
		Connectivity: client.NewHealthProbe(api, 0),
		Logger:       logger,
	})
}

// repl 逐行读取输入，斜杠开头的是命令，其余作为消息发送
type repl struct {
	ctrl       *conversation.Controller
	out        io.Writer
	supportURL string
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	snap := r.ctrl.Snapshot()
	fmt.Fprintf(r.out, "Signed in as %s. Type a message, or /quit to leave.\n", snap.User)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			r.send(ctx, line)
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/quit", "/exit":
			return nil
		case "/retry":
			r.retry(ctx, fields[1:])
		case "/new":
			r.report(r.ctrl.NewChat(), "started a new conversation")
		case "/sessions":
			r.listSessions()
		case "/open":
			r.open(fields[1:])
		case "/delete":
			r.delete(ctx, fields[1:])
		case "/settings":
			r.settings(ctx, fields[1:])
		default:
			fmt.Fprintf(r.out, "unknown command %s\n", fields[0])
		}
	}
}

func (r *repl) send(ctx context.Context, text string) {
	turn, err := r.ctrl.Send(ctx, text)
	r.showTurn(turn, err)
}

func (r *repl) retry(ctx context.Context, args []string) {
	id := ""
	if len(args) > 0 {
		id = args[0]
	} else {
		messages := r.ctrl.Snapshot().Messages
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Failed() {
				id = messages[i].ID
				break
			}
		}
	}
	if id == "" {
		fmt.Fprintln(r.out, "nothing to retry")
		return
	}
	turn, err := r.ctrl.Retry(ctx, id)
	r.showTurn(turn, err)
}

func (r *repl) showTurn(turn conversation.Turn, err error) {
	switch {
	case err == nil:
		renderReply(r.out, turn.Reply, r.supportURL)
	case errors.Is(err, conversation.ErrOffline):
		fmt.Fprintln(r.out, "error: you are offline. Check your connection and /retry.")
	case errors.Is(err, gateway.ErrConfiguration):
		fmt.Fprintln(r.out, "error: the server has no API key configured.")
	case errors.Is(err, conversation.ErrTurnInFlight), errors.Is(err, conversation.ErrEmptyMessage):
		fmt.Fprintf(r.out, "error: %v\n", err)
	default:
		fmt.Fprintf(r.out, "error: %v. Type /retry to try again.\n", err)
	}
}

func (r *repl) listSessions() {
	sessions := r.ctrl.Snapshot().Sessions
	if len(sessions) == 0 {
		fmt.Fprintln(r.out, "no saved conversations")
		return
	}
	current := r.ctrl.Snapshot().CurrentSessionID
	for i, session := range sessions {
		marker := " "
		if session.ID == current {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %d. %s (%d messages)\n", marker, i+1, session.Title, len(session.Messages))
	}
}

// resolveSession 接受序号（从1开始）或会话ID
func (r *repl) resolveSession(args []string) (string, bool) {
	if len(args) == 0 {
		fmt.Fprintln(r.out, "which conversation? use a number from /sessions or an id")
		return "", false
	}
	sessions := r.ctrl.Snapshot().Sessions
	if n, err := strconv.Atoi(args[0]); err == nil {
		if n < 1 || n > len(sessions) {
			fmt.Fprintf(r.out, "no conversation #%d\n", n)
			return "", false
		}
		return sessions[n-1].ID, true
	}
	return args[0], true
}

func (r *repl) open(args []string) {
	id, ok := r.resolveSession(args)
	if !ok {
		return
	}
	if err := r.ctrl.SelectSession(id); err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}
	for _, msg := range r.ctrl.Snapshot().Messages {
		printMessage(r.out, msg)
	}
}

func (r *repl) delete(ctx context.Context, args []string) {
	id, ok := r.resolveSession(args)
	if !ok {
		return
	}
	r.report(r.ctrl.DeleteSession(ctx, id), "conversation deleted")
}

func (r *repl) settings(ctx context.Context, args []string) {
	prefs := r.ctrl.Snapshot().Settings
	if len(args) == 0 {
		fmt.Fprintf(r.out, "tone=%s language=%s theme=%s\n", prefs.Tone, prefs.Language, prefs.Theme)
		return
	}
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found {
			fmt.Fprintf(r.out, "expected key=value, got %q\n", arg)
			return
		}
		switch key {
		case "tone":
			prefs.Tone = settings.Tone(value)
		case "language":
			prefs.Language = settings.Language(value)
		case "theme":
			prefs.Theme = settings.Theme(value)
		default:
			fmt.Fprintf(r.out, "unknown setting %q\n", key)
			return
		}
	}
	r.report(r.ctrl.UpdateSettings(ctx, prefs), "settings saved")
}

func (r *repl) report(err error, success string) {
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, success)
}
