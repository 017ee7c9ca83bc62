package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"legalmind/internal/config"
	"legalmind/internal/extract"
	"legalmind/internal/orchestrator"
	"legalmind/internal/session"
	"legalmind/internal/store"
)

func newChatCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant from the terminal",
		Long: `Start an interactive session against the configured LLM provider.
Use --file to ground the session on a PDF or TXT document.
Type "generate contract: <type>: <details>" to draft a contract, "exit" to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			return runChat(cmd.Context(), cfg, file, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("file", "", "Document to load into the session")
	return cmd
}

func runChat(ctx context.Context, cfg *config.Config, file string, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st := store.NewMemoryStore(cfg.SessionTTL())
	defer st.Close()

	sessionID, err := session.NewID()
	if err != nil {
		return err
	}

	var docText string
	if file != "" {
		ex, err := extract.New(ctx)
		if err != nil {
			return err
		}
		docText, err = ex.LoadFile(ctx, file)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Loaded %s (%d characters).\n", file, len([]rune(docText)))
	}

	orch := orchestrator.NewService(newLLMClient(ctx, cfg), st, orchestrator.WithRunner(orchestrator.NewKeyedMutex()))
	if file != "" {
		fmt.Fprintln(out, "Ask a question about the document or general legal topics, or request a contract generation.")
	} else {
		fmt.Fprintln(out, "Ask general legal questions or request a contract generation.")
	}

	return chatLoop(ctx, orch, sessionID, docText, in, out)
}

func chatLoop(ctx context.Context, orch *orchestrator.Service, sessionID, docText string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		reply, err := orch.RunChat(ctx, input, sessionID, &docText)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply)
	}
}
