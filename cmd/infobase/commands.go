package main

import (
	"github.com/spf13/cobra"

	"github.com/alphabot-ai/infobase/internal/config"
	"github.com/alphabot-ai/infobase/internal/selector"
)

var (
	// persistent flags
	configPath string
	apiURL     string

	// list flags
	listPage    int
	listLimit   int
	searchLimit int
	listSort    string
	listTags    []string
	answerSort  string

	// write flags
	askTags     []string
	voteDown    bool
	voteAnswer  bool
	voteOnQID   int64
	clearRecent bool

	// auth flags
	regEmail    string
	regPassword string
	regName     string
	regAvatar   string
	regSkills   []string
	regProject  string
	regKeyAlg   string
	keyAlg      string
	keyPrivate  string
	loginEmail  string
	loginPass   string

	notifyLimit  int
	notifyUnread bool

	rootCmd = &cobra.Command{
		Use:          "infobase",
		Short:        "Q&A forum client and reference server",
		Long:         `infobase talks to a Q&A forum: list and search questions, ask and answer, vote, accept answers and follow notifications. "infobase serve" runs the reference API server.`,
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the reference API server",
		Long:  `Runs the HTTP API backed by SQLite. Configured through INFOBASE_* environment variables.`,
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key pair for key login",
		Args:  cobra.NoArgs,
		RunE:  runKeygen,
	}

	registerCmd = &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE:  withApp(runRegister),
	}

	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Args:  cobra.NoArgs,
		RunE:  withApp(runLogin),
	}

	loginKeyCmd = &cobra.Command{
		Use:   "login-key",
		Short: "Log in by signing a server challenge",
		Long:  `Signs a one-time challenge with the given private key. The key can also come from INFOBASE_PRIVATE_KEY.`,
		Args:  cobra.NoArgs,
		RunE:  withApp(runLoginKey),
	}

	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored token",
		Args:  cobra.NoArgs,
		RunE:  withApp(runLogout),
	}

	whoamiCmd = &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE:  withApp(runWhoami),
	}

	questionsCmd = &cobra.Command{
		Use:     "questions",
		Aliases: []string{"ls"},
		Short:   "List questions",
		Args:    cobra.NoArgs,
		RunE:    withApp(runQuestions),
	}

	showCmd = &cobra.Command{
		Use:   "show <question-id>",
		Short: "Show a question with its answers",
		Args:  cobra.ExactArgs(1),
		RunE:  withApp(runShow),
	}

	searchCmd = &cobra.Command{
		Use:   "search <query>",
		Short: "Search loaded questions by title, description and tags",
		Args:  cobra.MinimumNArgs(1),
		RunE:  withApp(runSearch),
	}

	recentCmd = &cobra.Command{
		Use:   "recent",
		Short: "List recent searches",
		Args:  cobra.NoArgs,
		RunE:  withApp(runRecent),
	}

	askCmd = &cobra.Command{
		Use:   "ask <title> <description>",
		Short: "Ask a question",
		Args:  cobra.ExactArgs(2),
		RunE:  withApp(runAsk),
	}

	answerCmd = &cobra.Command{
		Use:   "answer <question-id> <body>",
		Short: "Answer a question",
		Args:  cobra.ExactArgs(2),
		RunE:  withApp(runAnswer),
	}

	voteCmd = &cobra.Command{
		Use:   "vote <id>",
		Short: "Toggle your vote on a question or answer",
		Long:  `Clicking the same direction twice removes the vote. Use --down for a downvote and --answer --question <id> to vote on an answer.`,
		Args:  cobra.ExactArgs(1),
		RunE:  withApp(runVote),
	}

	acceptCmd = &cobra.Command{
		Use:   "accept <question-id> <answer-id>",
		Short: "Accept an answer to your question",
		Args:  cobra.ExactArgs(2),
		RunE:  withApp(runAccept),
	}

	deleteAnswerCmd = &cobra.Command{
		Use:   "delete-answer <question-id> <answer-id>",
		Short: "Delete one of your answers",
		Args:  cobra.ExactArgs(2),
		RunE:  withApp(runDeleteAnswer),
	}

	deleteQuestionCmd = &cobra.Command{
		Use:   "delete-question <question-id>",
		Short: "Delete one of your questions",
		Args:  cobra.ExactArgs(1),
		RunE:  withApp(runDeleteQuestion),
	}

	notificationsCmd = &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"inbox"},
		Short:   "List notifications",
		Args:    cobra.NoArgs,
		RunE:    withApp(runNotifications),
	}

	readCmd = &cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE:  withApp(runRead),
	}

	readAllCmd = &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification read",
		Args:  cobra.NoArgs,
		RunE:  withApp(runReadAll),
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultClientPath(), "Client profile (YAML)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (overrides the profile)")

	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVar(&keyAlg, "alg", "ed25519", "Key algorithm: ed25519 or secp256k1")

	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().StringVar(&regEmail, "email", "", "Account email")
	registerCmd.Flags().StringVar(&regPassword, "password", "", "Account password (at least 8 characters)")
	registerCmd.Flags().StringVar(&regName, "name", "", "Display name")
	registerCmd.Flags().StringVar(&regAvatar, "avatar", "", "Avatar URL")
	registerCmd.Flags().StringSliceVar(&regSkills, "skills", nil, "Comma separated skills")
	registerCmd.Flags().StringVar(&regProject, "project", "", "Project name")
	registerCmd.Flags().StringVar(&regKeyAlg, "key-alg", "", "Also generate and register a signing key (ed25519 or secp256k1)")
	_ = registerCmd.MarkFlagRequired("email")
	_ = registerCmd.MarkFlagRequired("password")
	_ = registerCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPass, "password", "", "Account password")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(loginKeyCmd)
	loginKeyCmd.Flags().StringVar(&keyAlg, "alg", "ed25519", "Key algorithm: ed25519 or secp256k1")
	loginKeyCmd.Flags().StringVar(&keyPrivate, "private-key", "", "Private key (ed25519 base64/hex or secp256k1 hex)")

	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	rootCmd.AddCommand(questionsCmd)
	questionsCmd.Flags().IntVar(&listPage, "page", 1, "Page to load")
	questionsCmd.Flags().IntVar(&listLimit, "limit", 20, "Questions per page")
	questionsCmd.Flags().StringVar(&listSort, "sort", "votes", "Sort: votes, recent or answers")
	questionsCmd.Flags().StringSliceVar(&listTags, "tag", nil, "Only questions carrying every given tag")

	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringVar(&answerSort, "sort", string(selector.ByVotes), "Answer order: votes, newest or oldest")

	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchLimit, "limit", 100, "Questions to load before searching")

	rootCmd.AddCommand(recentCmd)
	recentCmd.Flags().BoolVar(&clearRecent, "clear", false, "Clear the recent search list")

	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringSliceVar(&askTags, "tags", nil, "Comma separated tags (at most 5)")

	rootCmd.AddCommand(answerCmd)

	rootCmd.AddCommand(voteCmd)
	voteCmd.Flags().BoolVar(&voteDown, "down", false, "Downvote instead of upvote")
	voteCmd.Flags().BoolVar(&voteAnswer, "answer", false, "Vote on an answer instead of a question")
	voteCmd.Flags().Int64Var(&voteOnQID, "question", 0, "Question the answer belongs to (with --answer)")

	rootCmd.AddCommand(acceptCmd)
	rootCmd.AddCommand(deleteAnswerCmd)
	rootCmd.AddCommand(deleteQuestionCmd)

	rootCmd.AddCommand(notificationsCmd)
	notificationsCmd.Flags().IntVar(&notifyLimit, "limit", 20, "Notifications to show")
	notificationsCmd.Flags().BoolVar(&notifyUnread, "unread", false, "Only unread notifications")

	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(readAllCmd)
}
