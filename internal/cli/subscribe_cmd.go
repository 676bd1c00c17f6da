package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stevehuang0115/agentmux/internal/eventbus"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <subscriber-session>",
	Short: "Route agent lifecycle events to a session as messages",
	Long: `Create an event subscription: when a matching agent event fires, a rendered
notification message is delivered to the subscriber session.

Event types: agent:status_changed, agent:registered, agent:idle, agent:busy,
agent:terminated, agent:context_usage.

Subscriptions live inside the supervisor process; this command keeps running
until Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubscribe,
}

func init() {
	subscribeCmd.Flags().StringSlice("events", nil, "Event types to match (required)")
	subscribeCmd.Flags().String("filter-session", "", "Only match events from this session")
	subscribeCmd.Flags().String("filter-team", "", "Only match events from this team")
	subscribeCmd.Flags().Bool("persistent", false, "Keep the subscription after the first delivery")
	subscribeCmd.Flags().Int("ttl", 0, "Subscription lifetime in minutes (0 = default)")
	subscribeCmd.Flags().String("template", "", "Notification template ({eventType}, {sessionName}, {newValue}, ...)")
	subscribeCmd.MarkFlagRequired("events")
	rootCmd.AddCommand(subscribeCmd)
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	eventTypes, _ := cmd.Flags().GetStringSlice("events")
	filterSession, _ := cmd.Flags().GetString("filter-session")
	filterTeam, _ := cmd.Flags().GetString("filter-team")
	persistent, _ := cmd.Flags().GetBool("persistent")
	ttl, _ := cmd.Flags().GetInt("ttl")
	template, _ := cmd.Flags().GetString("template")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	oneShot := !persistent
	id, err := a.bus.CreateSubscription(eventbus.SubscriptionInput{
		EventTypes: eventTypes,
		Filter: eventbus.Filter{
			SessionName: filterSession,
			TeamID:      filterTeam,
		},
		OneShot:           &oneShot,
		TTLMinutes:        ttl,
		SubscriberSession: args[0],
		MessageTemplate:   template,
	})
	if err != nil {
		return err
	}

	fmt.Printf("  %ssubscribed%s %s -> %s (%s)\n",
		styleBoldGreen, colorReset, strings.Join(eventTypes, ","), args[0], id)
	fmt.Printf("  %sListening. Ctrl-C removes the subscription and exits.%s\n", colorDim, colorReset)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	<-sigCh

	a.bus.RemoveSubscription(id)
	return nil
}
