package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pageza/storefront-assistant/backend/internal/service"
)

var sessionFlag string

var sendCmd = &cobra.Command{
	Use:   "send <message>...",
	Short: "Send one message and print the reply",
	Long: `Send one message to the assistant and print its reply.

The session id is printed last; pass it back with --session to continue
the same conversation.

Examples:
  chatctl send --shop acme.myshopify.com "show me wool socks"
  chatctl send --shop acme.myshopify.com --session 5f0c... "add the first one"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Chat interactively",
	Long: `Chat with the assistant line by line.

Type /reset to start a new conversation and /quit to leave.`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func init() {
	sendCmd.Flags().StringVar(&sessionFlag, "session", "", "Continue an existing session")
	replCmd.Flags().StringVar(&sessionFlag, "session", "", "Continue an existing session")
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(replCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	reply, err := newClient().Send(cmd.Context(), sessionFlag, strings.Join(args, " "))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printReply(out, reply)
	fmt.Fprintf(out, "session: %s\n", reply.SessionID)
	return nil
}

func runRepl(cmd *cobra.Command, _ []string) error {
	client := newClient()
	out := cmd.OutOrStdout()
	sessionID := sessionFlag

	scanner := bufio.NewScanner(cmd.InOrStdin())
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/reset":
			if sessionID != "" {
				if err := client.Reset(cmd.Context(), sessionID); err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
				}
			}
			sessionID = ""
			fmt.Fprintln(out, "Started a new conversation.")
		default:
			reply, err := client.Send(cmd.Context(), sessionID, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				break
			}
			sessionID = reply.SessionID
			printReply(out, reply)
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func printReply(w io.Writer, reply *service.Reply) {
	fmt.Fprintln(w, reply.Message)
	if reply.Error != "" {
		fmt.Fprintf(w, "  [%s]\n", reply.Error)
	}
	if reply.Cart.ItemCount > 0 {
		fmt.Fprintf(w, "  cart: %d item(s), subtotal %s\n", reply.Cart.ItemCount, reply.Cart.Subtotal)
	}
	if reply.CheckoutURL != "" {
		fmt.Fprintf(w, "  checkout: %s\n", reply.CheckoutURL)
	}
}
