package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/mhsanaei/csc-portal/config"
	"github.com/mhsanaei/csc-portal/database"
	"github.com/mhsanaei/csc-portal/database/backend"
	"github.com/mhsanaei/csc-portal/database/model"
	"github.com/mhsanaei/csc-portal/logger"
	"github.com/mhsanaei/csc-portal/web"
	"github.com/mhsanaei/csc-portal/web/service"
)

func initLogger() {
	level, err := logger.ParseLevel(config.GetLogLevel())
	if err != nil {
		log.Fatal(err)
	}
	logger.InitLogger(level)
}

func openStore(configPath string) (*config.Config, database.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := backend.Open(context.Background(), &cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// startServer loads the configuration and storage and starts serving.
func startServer(configPath string) (*web.Server, database.Store, error) {
	cfg, store, err := openStore(configPath)
	if err != nil {
		return nil, nil, err
	}
	server, err := web.NewServer(cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	if err := server.Start(); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return server, store, nil
}

func stopServer(server *web.Server, store database.Store) {
	if err := server.Stop(); err != nil {
		logger.Warning("stop server err:", err)
	}
	if err := store.Close(); err != nil {
		logger.Warning("close storage err:", err)
	}
}

func runWebServer(configPath string) {
	log.Printf("%v %v", config.GetName(), config.GetVersion())
	initLogger()
	defer logger.CloseLogger()

	server, store, err := startServer(configPath)
	if err != nil {
		logger.Error("start server failed:", err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	// Trap shutdown signals
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, os.Interrupt)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			logger.Info("reloading on SIGHUP")
			stopServer(server, store)
			server, store, err = startServer(configPath)
			if err != nil {
				logger.Error("restart server failed:", err)
				return
			}
		default:
			stopServer(server, store)
			return
		}
	}
}

func migrateDb(configPath string) {
	initLogger()
	_, store, err := openStore(configPath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	fmt.Println("Start migrating database...")
	if m, ok := store.(database.Migrator); ok {
		if err := m.Migrate(context.Background()); err != nil {
			log.Fatal(err)
		}
	}
	fmt.Println("Migration done!")
}

func showSetting(configPath string, format string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Println("load config failed:", err)
		os.Exit(1)
	}
	masked := cfg.Masked()

	var out []byte
	switch format {
	case "toml":
		out, err = toml.Marshal(masked)
	default:
		out, err = json.MarshalIndent(masked, "", "  ")
	}
	if err != nil {
		fmt.Println("encode config failed:", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func addUser(configPath, username, password, role string) {
	_, store, err := openStore(configPath)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer store.Close()

	id, err := service.NewUserService(store).Register(context.Background(), username, password, model.Role(role))
	if err != nil {
		fmt.Println("add user failed:", err)
		os.Exit(1)
	}
	fmt.Printf("user %s added with id %d\n", username, id)
}

func main() {
	var configPath string

	var rootCmd = &cobra.Command{
		Use:   config.GetName(),
		Short: "Consultation portal: accounts, bookings, payments and call relay",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			runWebServer(configPath)
		},
	}

	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply storage schema migrations",
		Run: func(cmd *cobra.Command, args []string) {
			migrateDb(configPath)
		},
	}

	var settingCmd = &cobra.Command{
		Use:   "setting",
		Short: "Inspect settings",
	}

	var showCmd = &cobra.Command{
		Use:   "show",
		Short: "Show current settings with secrets masked",
		Run: func(cmd *cobra.Command, args []string) {
			format, _ := cmd.Flags().GetString("format")
			showSetting(configPath, format)
		},
	}
	showCmd.Flags().String("format", "json", "output format: json or toml")
	settingCmd.AddCommand(showCmd)

	var userCmd = &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var addCmd = &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		Run: func(cmd *cobra.Command, args []string) {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")
			addUser(configPath, username, password, role)
		},
	}
	addCmd.Flags().String("username", "", "login username")
	addCmd.Flags().String("password", "", "login password")
	addCmd.Flags().String("role", string(model.RoleUser), "user or operator")
	userCmd.AddCommand(addCmd)

	rootCmd.AddCommand(runCmd, migrateCmd, settingCmd, userCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
