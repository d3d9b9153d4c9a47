package schema

import "github.com/msgsight/cfgd/pkg/object"

// Name and value limits.
const (
	DefaultMaxNameLength         = 256
	SecurityProfileMaxNameLength = 32
	LongStringLength             = 1024
	MaxClientAddresses           = 100
	MaxInt32                     = 2147483647
)

// AdminDefaultConfigPolicy is the configuration policy seeded at first start
// and referenced by the AdminEndpoint singleton.
const AdminDefaultConfigPolicy = "AdminDefaultConfigPolicy"

var (
	destinationTypes = []string{"Topic", "Queue", "Subscription"}
	actionsByDest    = map[string][]string{
		"Topic":        {"Publish", "Subscribe"},
		"Queue":        {"Send", "Receive", "Browse"},
		"Subscription": {"Receive", "Control"},
	}
	protocols      = []string{"JMS", "MQTT", "AMQP", "HTTP"}
	policyGroup    = []string{"ClientID", "ClientAddress", "UserID", "GroupID", "CommonNames", "Protocol"}
	configGroup    = []string{"ClientAddress", "UserID", "GroupID", "CommonNames"}
	endpointGroup  = []string{"TopicPolicies", "QueuePolicies", "MessagingPolicies", "SubscriptionPolicies"}
	configActions  = []string{"Configure", "View", "Monitor", "Manage"}
	maxMsgBehavior = []string{"RejectNewMessages", "DiscardOldMessages"}
)

// ====================================================================
// Property helpers
// ====================================================================

func str(name string, maxLen int) *Property {
	return &Property{Name: name, Type: TypeString, MaxLength: maxLen}
}

func requiredStr(name string, maxLen int) *Property {
	p := str(name, maxLen)
	p.Required = true
	return p
}

func integer(name string, min, max int64, def object.Value) *Property {
	return &Property{Name: name, Type: TypeInteger, Min: min, Max: max, HasRange: true, Default: def}
}

func boolean(name string, def bool) *Property {
	return &Property{Name: name, Type: TypeBoolean, Default: object.Boolean(def)}
}

func enum(name string, values []string, def string) *Property {
	p := &Property{Name: name, Type: TypeEnum, Enum: values}
	if def != "" {
		p.Default = object.String(def)
	}
	return p
}

func ref(name, target string) *Property {
	return &Property{Name: name, Type: TypeString, Ref: target}
}

func refList(name, target string) *Property {
	return &Property{Name: name, Type: TypeString, Ref: target, RefList: true}
}

func tokens(name string, allowed []string) *Property {
	return &Property{Name: name, Type: TypeString, Grammar: GrammarTokens, Tokens: allowed}
}

func description() *Property { return str("Description", LongStringLength) }

func policyGroupProps() []*Property {
	return []*Property{
		str("ClientID", LongStringLength),
		{Name: "ClientAddress", Type: TypeString, Grammar: GrammarIPList, MaxEntries: MaxClientAddresses},
		str("UserID", LongStringLength),
		str("GroupID", LongStringLength),
		str("CommonNames", LongStringLength),
		tokens("Protocol", protocols),
	}
}

func actionList(by string, sets map[string][]string) *Property {
	return &Property{Name: "ActionList", Type: TypeString, Required: true, Grammar: GrammarTokens, TokensBy: by, TokenSets: sets}
}

func destinationType(required bool, def string) *Property {
	p := enum("DestinationType", destinationTypes, def)
	p.Required = required
	p.Immutable = true
	return p
}

func maxMessages() *Property {
	return integer("MaxMessages", 1, 20000000, object.Integer(5000))
}

func ttl() *Property {
	return &Property{Name: "MaxMessageTimeToLive", Type: TypeString, Grammar: GrammarTTL, Default: object.String("unlimited")}
}

// ====================================================================
// Object types
// ====================================================================

func builtinTypes() []*ObjectType {
	destination := requiredStr("Destination", LongStringLength)
	destination.LengthIsValue = true

	return []*ObjectType{
		{
			Name: "MessagingPolicy", MaxNameLength: DefaultMaxNameLength,
			Properties: append(policyGroupProps(),
				description(),
				destination,
				destinationType(true, ""),
				actionList("DestinationType", actionsByDest),
				maxMessages(),
				enum("MaxMessagesBehavior", maxMsgBehavior, "RejectNewMessages"),
				ttl(),
				boolean("DisconnectedClientNotification", false),
			),
			Group: policyGroup,
		},
		{
			Name: "TopicPolicy", MaxNameLength: DefaultMaxNameLength,
			Properties: append(policyGroupProps(),
				description(),
				requiredStr("Topic", LongStringLength),
				withRequired(tokens("ActionList", actionsByDest["Topic"])),
				maxMessages(),
				enum("MaxMessagesBehavior", maxMsgBehavior, "RejectNewMessages"),
				ttl(),
				boolean("DisconnectedClientNotification", false),
			),
			Group: policyGroup,
		},
		{
			Name: "QueuePolicy", MaxNameLength: DefaultMaxNameLength,
			Properties: append(policyGroupProps(),
				description(),
				requiredStr("Destination", LongStringLength),
				destinationType(false, "Queue"),
				actionList("DestinationType", actionsByDest),
				ttl(),
			),
		},
		{
			Name: "SubscriptionPolicy", MaxNameLength: DefaultMaxNameLength,
			Properties: append(policyGroupProps(),
				description(),
				requiredStr("Subscription", LongStringLength),
				withRequired(tokens("ActionList", actionsByDest["Subscription"])),
				maxMessages(),
				enum("MaxMessagesBehavior", maxMsgBehavior, "RejectNewMessages"),
			),
			Group: policyGroup,
		},
		{
			Name: "ConnectionPolicy", MaxNameLength: DefaultMaxNameLength,
			Properties: append(policyGroupProps(),
				description(),
				boolean("AllowDurable", true),
				boolean("AllowPersistentMessages", true),
				enum("ExpectedMessageRate", []string{"Low", "Default", "High", "Max"}, "Default"),
				integer("MaxSessionExpiryInterval", 0, MaxInt32, object.Null()),
			),
			Group: policyGroup,
		},
		{
			Name: "ConfigurationPolicy", MaxNameLength: DefaultMaxNameLength,
			Properties: []*Property{
				{Name: "ClientAddress", Type: TypeString, Grammar: GrammarIPList, MaxEntries: MaxClientAddresses},
				str("UserID", LongStringLength),
				str("GroupID", LongStringLength),
				str("CommonNames", LongStringLength),
				description(),
				withRequired(tokens("ActionList", configActions)),
			},
			Group: configGroup,
		},
		{
			Name: "CertificateProfile", MaxNameLength: DefaultMaxNameLength,
			Properties: []*Property{
				requiredStr("Certificate", 255),
				requiredStr("Key", 255),
				description(),
			},
		},
		{
			Name: "CRLProfile", MaxNameLength: DefaultMaxNameLength,
			Properties: []*Property{
				requiredStr("CRLSource", LongStringLength),
				integer("UpdateInterval", 0, MaxInt32, object.Integer(60)),
				boolean("RevalidateConnection", false),
				description(),
			},
		},
		{
			Name: "LTPAProfile", MaxNameLength: DefaultMaxNameLength,
			Properties: []*Property{
				requiredStr("KeyFileName", 255),
				requiredStr("Password", LongStringLength),
				description(),
			},
		},
		{
			Name: "OAuthProfile", MaxNameLength: DefaultMaxNameLength,
			Properties: []*Property{
				{Name: "ResourceURL", Type: TypeString, Required: true, Grammar: GrammarURL, MaxLength: LongStringLength},
				str("KeyFileName", 255),
				{Name: "AuthKey", Type: TypeString, MaxLength: 256, Default: object.String("access_token")},
				{Name: "UserInfoURL", Type: TypeString, Grammar: GrammarURL, MaxLength: LongStringLength},
				str("UserInfoKey", 256),
				str("GroupInfoKey", 256),
				description(),
			},
		},
		{
			Name: "SecurityProfile", MaxNameLength: SecurityProfileMaxNameLength,
			Properties: []*Property{
				ref("CertificateProfile", "CertificateProfile"),
				ref("CRLProfile", "CRLProfile"),
				ref("LTPAProfile", "LTPAProfile"),
				ref("OAuthProfile", "OAuthProfile"),
				boolean("TLSEnabled", true),
				boolean("UseClientCertificate", false),
				boolean("UsePasswordAuthentication", true),
				boolean("UseClientCipher", false),
				enum("MinimumProtocolMethod", []string{"TLSv1", "TLSv1.1", "TLSv1.2"}, "TLSv1.2"),
				enum("Ciphers", []string{"Best", "Fast", "Medium"}, "Medium"),
				description(),
			},
			Rules: []*Rule{
				{Assert: `!TLSEnabled || CertificateProfile != ""`, Property: "CertificateProfile", Code: "CWLNA0186"},
				{Assert: `CRLProfile == "" || UseClientCertificate`, Property: "UseClientCertificate"},
			},
		},
		{
			Name: "MessageHub", MaxNameLength: DefaultMaxNameLength,
			Properties: []*Property{description()},
		},
		{
			Name: "Endpoint", MaxNameLength: DefaultMaxNameLength,
			Properties: []*Property{
				withRequired(integer("Port", 1, 65535, object.Null())),
				boolean("Enabled", true),
				{Name: "Protocol", Type: TypeString, Default: object.String("All"), MaxLength: LongStringLength},
				{Name: "Interface", Type: TypeString, Grammar: GrammarInterface, Default: object.String("All")},
				withRequired(ref("MessageHub", "MessageHub")),
				ref("SecurityProfile", "SecurityProfile"),
				withRequired(refList("ConnectionPolicies", "ConnectionPolicy")),
				refList("TopicPolicies", "TopicPolicy"),
				refList("QueuePolicies", "QueuePolicy"),
				refList("MessagingPolicies", "MessagingPolicy"),
				refList("SubscriptionPolicies", "SubscriptionPolicy"),
				{Name: "MaxMessageSize", Type: TypeString, Grammar: GrammarSize, Default: object.String("4096KB")},
				integer("MaxSendSize", 128, 262144, object.Integer(16384)),
				boolean("BatchMessages", true),
				boolean("EnableAbout", false),
				description(),
			},
			Group: endpointGroup,
		},
		{
			Name: "Queue", MaxNameLength: DefaultMaxNameLength,
			Properties: []*Property{
				description(),
				boolean("AllowSend", true),
				boolean("ConcurrentConsumers", true),
				maxMessages(),
			},
		},

		// Scalar singletons.
		scalar(integer("TraceBackupCount", 1, 100, object.Integer(3))),
		scalar(str("TraceBackupDestination", LongStringLength)),
		scalar(&Property{Name: "TraceLevel", Type: TypeString, MaxLength: LongStringLength, Default: object.String("5")}),
		scalar(boolean("FIPS", false)),
		scalar(boolean("EnableDiskPersistence", true)),
		scalar(boolean("MQConnectivityEnabled", false)),

		// Composite singletons.
		{
			Name: "AdminEndpoint", Shape: CompositeSingleton,
			Properties: []*Property{
				integer("Port", 1, 65535, object.Integer(9089)),
				{Name: "Interface", Type: TypeString, Grammar: GrammarInterface, Default: object.String("All")},
				ref("SecurityProfile", "SecurityProfile"),
				{Name: "ConfigurationPolicies", Type: TypeString, Ref: "ConfigurationPolicy", RefList: true, Default: object.String(AdminDefaultConfigPolicy)},
				description(),
			},
		},
		{
			Name: "Syslog", Shape: CompositeSingleton,
			Properties: []*Property{
				{Name: "Host", Type: TypeString, MaxLength: 255, Default: object.String("127.0.0.1")},
				integer("Port", 1, 65535, object.Integer(514)),
				enum("Protocol", []string{"tcp", "udp"}, "udp"),
				boolean("Enabled", false),
			},
		},
	}
}

func withRequired(p *Property) *Property {
	p.Required = true
	return p
}

func scalar(p *Property) *ObjectType {
	return &ObjectType{Name: p.Name, Shape: ScalarSingleton, Properties: []*Property{p}}
}

// SeedObjects returns the collection objects created at first start in
// addition to the singleton defaults.
func SeedObjects() []*object.Object {
	return []*object.Object{
		{
			Type: "ConfigurationPolicy",
			Name: AdminDefaultConfigPolicy,
			Properties: object.Properties{
				"Description":   object.String("Default configuration policy for AdminEndpoint"),
				"ClientAddress": object.String("*"),
				"ActionList":    object.String("Configure,View,Monitor,Manage"),
			},
		},
	}
}
