package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hh-coverbot/internal/headhunter"
	"github.com/spigell/hh-coverbot/internal/logger"
	"github.com/spigell/hh-coverbot/internal/secrets"
	"github.com/spigell/hh-coverbot/internal/token"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize against hh.ru interactively and store the tokens",
	Run: func(cmd *cobra.Command, _ []string) {
		login(cmd)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

// staticTokens feeds the just-exchanged access token to the client before the
// owning subject is known.
type staticTokens string

func (s staticTokens) EnsureAccess(context.Context, string) (string, error) {
	return string(s), nil
}

func login(cmd *cobra.Command) {
	ctx := cmd.Context()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil || config.HH == nil {
		logger.Fatal("config must set the hh section")
	}

	clientSecret, err := secrets.Load(secrets.Source{
		Name:  "hh client secret",
		Value: config.HH.ClientSecret,
		Env:   "HH_CLIENT_SECRET",
		File:  config.HH.ClientSecretFile,
	})
	if err != nil {
		logger.Fatal("loading hh client secret", zap.Error(err))
	}

	tokenStore, _, _, cleanup, err := buildStores(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing storage", zap.Error(err))
	}
	defer cleanup()

	manager := token.NewManager(token.OAuthConfig{
		ClientID:     config.HH.ClientID,
		ClientSecret: clientSecret,
		RedirectURI:  config.HH.RedirectURI,
		UserAgent:    config.HH.UserAgent,
	}, tokenStore, logger)

	fmt.Println("Open this link in a browser and authorize the application:")
	fmt.Println(manager.AuthorizationURL("console"))

	prompt := promptui.Prompt{
		Label: "Authorization code",
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("the code must not be empty")
			}
			return nil
		},
	}

	code, err := prompt.Run()
	if err != nil {
		logger.Fatal("reading the authorization code", zap.Error(err))
	}

	tokens, err := manager.ExchangeCode(ctx, strings.TrimSpace(code))
	if err != nil {
		logger.Fatal("exchanging the code", zap.Error(err))
	}

	// The subject is not known until the token works: ask the API who we are.
	client := headhunter.New(staticTokens(tokens.AccessToken), "", logger)
	if config.HH.UserAgent != "" {
		client.UserAgent = config.HH.UserAgent
	}

	me, err := client.GetMe(ctx)
	if err != nil {
		logger.Fatal("fetching the profile", zap.Error(err))
	}

	if err := manager.SaveTokens(ctx, me.ID, tokens); err != nil {
		logger.Fatal("saving the tokens", zap.Error(err))
	}

	logger.Info("authorized", zap.String("subject", me.ID),
		zap.String("name", strings.TrimSpace(me.FirstName+" "+me.LastName)))

	pickResume(ctx, client, logger)
}

// pickResume lists the subject's resumes so the id can be put into the config.
func pickResume(ctx context.Context, client *headhunter.Client, logger *zap.Logger) {
	resumes, err := client.GetResumes(ctx)
	if err != nil {
		logger.Warn("listing resumes", zap.Error(err))
		return
	}
	if len(resumes) == 0 {
		logger.Warn("no resumes found, create one on the platform first")
		return
	}

	titles := make([]string, 0, len(resumes))
	for _, resume := range resumes {
		titles = append(titles, fmt.Sprintf("%s (%s)", resume.Title, resume.ID))
	}

	selector := promptui.Select{
		Label: "Default resume for cover letters",
		Items: titles,
	}

	index, _, err := selector.Run()
	if err != nil {
		logger.Warn("resume selection aborted", zap.Error(err))
		return
	}

	fmt.Printf("Selected resume id: %s\n", resumes[index].ID)
}
