package main

import (
	"net/http"

	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/pointb-tech/wayfarer/core"
	"github.com/pointb-tech/wayfarer/core/access"
	"github.com/pointb-tech/wayfarer/core/csql"
	"github.com/pointb-tech/wayfarer/core/gateway"
	"github.com/pointb-tech/wayfarer/core/logger"
	"github.com/pointb-tech/wayfarer/core/notify"
)

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// and POSTGRES_PASSWORD="docker"
type Service struct {
	Postgres            string `env:"POSTGRES,required" description:"the connection string for the Postgres DB without password"`
	PostgresPassword    string `env:"POSTGRES_PASSWORD,optional" description:"password to the Postgres DB"`
	MaxDBConnections    int    `env:"MAX_DB_CONNECTIONS,default=10" description:"upper bound for the connection pool"`
	SessionAuthority    string `env:"SESSION_AUTHORITY,optional" description:"base url of the session authority"`
	SessionAuthorityKey string `env:"SESSION_AUTHORITY_KEY,optional" description:"api key for the session authority"`
	BackdoorSecret      string `env:"BACKDOOR_SECRET,optional" description:"HS256 secret for development tokens, leave empty in production"`
	KafkaBrokers        string `env:"KAFKA_BROKERS,optional" description:"comma separated kafka brokers for mutation notifications"`
	KafkaTopic          string `env:"KAFKA_TOPIC,default=wayfarer-mutations" description:"kafka topic for mutation notifications"`
	Port                string `env:"PORT,default=3000" description:"the port the service listens on"`
}

func main() {
	logger.InitLogger(logrus.DebugLevel)
	rlog := logger.Default()

	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}

	db := csql.OpenWithSchema(service.Postgres, service.PostgresPassword, "wayfarer", service.MaxDBConnections)
	defer db.Close()

	router := mux.NewRouter()
	logger.AddRequestID(router)

	if service.BackdoorSecret != "" {
		rlog.Warningln("backdoor tokens are enabled")
		router.Use(access.NewBackdoorMiddleware(&access.BackdoorMiddlewareBuilder{
			Secret: service.BackdoorSecret,
		}))
	}
	if service.SessionAuthority != "" {
		router.Use(access.NewIdentityMiddleware(access.NewSessionAuthority(&access.SessionAuthorityBuilder{
			URL:        service.SessionAuthority,
			ServiceKey: service.SessionAuthorityKey,
		})))
	} else {
		rlog.Warningln("no session authority configured, only backdoor tokens will authenticate")
	}

	var notifier core.Notifier
	if service.KafkaBrokers != "" {
		kafkaNotifier := notify.NewKafkaNotifier(&notify.KafkaNotifierBuilder{
			Brokers: service.KafkaBrokers,
			Topic:   service.KafkaTopic,
		})
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	gateway.New(&gateway.Builder{
		DB:       db,
		Router:   router,
		Notifier: notifier,
	})

	cors := handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowedMethods([]string{http.MethodPost, http.MethodOptions}),
	)

	rlog.Infoln("listen on port :" + service.Port)
	http.ListenAndServe(":"+service.Port, cors(handlers.CombinedLoggingHandler(logrus.StandardLogger().Out, router)))
}
