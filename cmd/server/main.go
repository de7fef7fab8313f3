package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zimbuild/sitebackend/internal/model"
	"github.com/zimbuild/sitebackend/internal/notifications"
	"github.com/zimbuild/sitebackend/internal/storage"
	"github.com/zimbuild/sitebackend/internal/upload"
)

const (
	commandUseName               = "server"
	commandShortDescription      = "Run the ZimBuild site backend"
	commandLongDescription       = "Launch the HTTP API behind the ZimBuild Construction marketing site"
	createUserCommandUseName     = "create-user"
	createUserShortDescription   = "Create a staff account"
	loggerCreationErrorMessage   = "logger"
	logEventListening            = "listening"
	logEventShutdown             = "shutdown"
	logEventMailer               = "mailer"
	logEventAuthBypass           = "auth_bypass"
	logFieldAddress              = "addr"
	logFieldEnvironment          = "env"
	loggerContextOpenStore       = "open_store"
	loggerContextOpenBlobs       = "open_blobs"
	loggerContextRoutes          = "routes"
	loggerContextServer          = "server"
	readHeaderTimeoutSeconds     = 5
	shutdownTimeout              = 10 * time.Second
	unexpectedArgumentsMessage   = "unexpected command arguments"
	commandInitializationFailure = "failed to configure command"

	flagNameUserName     = "name"
	flagNameUserEmail    = "email"
	flagNameUserPassword = "password"
	flagNameUserRole     = "role"
)

// StoreOpener builds the record store from storage settings.
type StoreOpener func(storage.Settings) (storage.Store, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	storeOpener         StoreOpener
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		storeOpener:         storage.NewStore,
	}
}

// WithStoreOpener overrides the store opener dependency.
func (application *ServerApplication) WithStoreOpener(storeOpener StoreOpener) *ServerApplication {
	application.storeOpener = storeOpener
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		Args:  rejectArguments,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureFlags(rootCommand.PersistentFlags()); configurationErr != nil {
		return nil, configurationErr
	}
	rootCommand.AddCommand(application.createUserCommand())

	return rootCommand, nil
}

func (application *ServerApplication) createUserCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   createUserCommandUseName,
		Short: createUserShortDescription,
		Args:  rejectArguments,
		RunE:  application.runCreateUser,
	}
	commandFlags := command.Flags()
	commandFlags.String(flagNameUserName, "", "display name")
	commandFlags.String(flagNameUserEmail, "", "login email")
	commandFlags.String(flagNameUserPassword, "", "login password, at least 6 characters")
	commandFlags.String(flagNameUserRole, string(model.RoleAdmin), "admin, manager, editor or viewer")
	for _, required := range []string{flagNameUserName, flagNameUserEmail, flagNameUserPassword} {
		_ = command.MarkFlagRequired(required)
	}
	return command
}

// rejectArguments replaces cobra's subcommand lookup error for stray positional arguments.
func rejectArguments(_ *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}
	return nil
}

func (application *ServerApplication) runCommand(command *cobra.Command, _ []string) error {
	serverConfig, configurationErr := application.loadConfiguration()
	if configurationErr != nil {
		return configurationErr
	}
	if validationErr := ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}

	logger, loggerErr := newLogger(serverConfig)
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()
	if serverConfig.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	if !serverConfig.AuthEnforce {
		logger.Warn(logEventAuthBypass, zap.String(logFieldEnvironment, serverConfig.Environment))
	}

	store, storeErr := application.storeOpener(serverConfig.Storage)
	if storeErr != nil {
		logger.Fatal(loggerContextOpenStore, zap.Error(storeErr))
	}
	defer func() {
		_ = store.Close()
	}()

	blobs, blobsErr := upload.NewLocalBlobStore(serverConfig.UploadDirectory)
	if blobsErr != nil {
		logger.Fatal(loggerContextOpenBlobs, zap.Error(blobsErr))
	}

	sender, senderErr := newMailSender(serverConfig, logger)
	if senderErr != nil {
		logger.Fatal(logEventMailer, zap.Error(senderErr))
	}

	router, routerErr := newRouter(routerDependencies{
		configuration: serverConfig,
		store:         store,
		blobs:         blobs,
		sender:        sender,
		logger:        logger,
	})
	if routerErr != nil {
		logger.Fatal(loggerContextRoutes, zap.Error(routerErr))
	}

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	signalContext, stopSignals := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	go func() {
		<-signalContext.Done()
		shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info(logEventShutdown)
		_ = httpServer.Shutdown(shutdownContext)
	}()

	logger.Info(logEventListening,
		zap.String(logFieldAddress, serverConfig.ApplicationAddress),
		zap.String(logFieldEnvironment, serverConfig.Environment),
	)
	if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		logger.Error(loggerContextServer, zap.Error(serveErr))
		return serveErr
	}

	return nil
}

func (application *ServerApplication) runCreateUser(command *cobra.Command, _ []string) error {
	serverConfig, configurationErr := application.loadConfiguration()
	if configurationErr != nil {
		return configurationErr
	}
	if serverConfig.Storage.Mode == storage.ModeMemory {
		return fmt.Errorf("%s: %s cannot persist accounts", invalidConfigurationMessage, storage.ModeMemory)
	}
	if serverConfig.Storage.Database.DataSourceName == "" {
		return fmt.Errorf("%s: %s", missingConfigurationMessage, flagNameDatabaseDataSource)
	}

	commandFlags := command.Flags()
	name, _ := commandFlags.GetString(flagNameUserName)
	email, _ := commandFlags.GetString(flagNameUserEmail)
	password, _ := commandFlags.GetString(flagNameUserPassword)
	role, _ := commandFlags.GetString(flagNameUserRole)

	user, userErr := model.NewUser(model.UserInput{Name: name, Email: email, Password: password, Role: role})
	if userErr != nil {
		return userErr
	}

	store, storeErr := application.storeOpener(serverConfig.Storage)
	if storeErr != nil {
		return storeErr
	}
	defer func() {
		_ = store.Close()
	}()
	if createErr := store.CreateUser(command.Context(), &user); createErr != nil {
		return createErr
	}
	fmt.Fprintf(command.OutOrStdout(), "created %s %s (%s)\n", user.Role, user.Email, user.ID)
	return nil
}

func newLogger(configuration ServerConfig) (*zap.Logger, error) {
	if configuration.Production() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// newMailSender relays through SMTP when a host is configured and logs messages otherwise.
func newMailSender(configuration ServerConfig, logger *zap.Logger) (notifications.Sender, error) {
	if configuration.SMTPHost == "" {
		return notifications.NewLogSender(logger), nil
	}
	return notifications.NewSMTPSender(notifications.SMTPConfig{
		Host:     configuration.SMTPHost,
		Port:     configuration.SMTPPort,
		Username: configuration.SMTPUsername,
		Password: configuration.SMTPPassword,
		From:     configuration.SMTPFrom,
	})
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
