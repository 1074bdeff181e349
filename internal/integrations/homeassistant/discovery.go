package homeassistant

import (
	"fmt"

	"face-door-lock/config"

	log "github.com/sirupsen/logrus"
)

const (
	ComponentSensor       = "sensor"
	ComponentBinarySensor = "binary_sensor"
	NodeID                = "face_door_lock"
)

// Broker is the part of the MQTT client the Home Assistant integration needs
type Broker interface {
	Topic(parts ...string) string
	AvailabilityTopic() string
	Publish(topic string, payload interface{}) error
	PublishRetain(topic string, payload interface{}) error
}

// EntityConfig is the MQTT discovery payload of one entity
type EntityConfig struct {
	Name                string  `json:"name"`
	UniqueID            string  `json:"unique_id"`
	StateTopic          string  `json:"state_topic"`
	DeviceClass         string  `json:"device_class,omitempty"`
	Icon                string  `json:"icon,omitempty"`
	JSONAttributesTopic string  `json:"json_attributes_topic,omitempty"`
	ValueTemplate       string  `json:"value_template,omitempty"`
	PayloadOn           string  `json:"payload_on,omitempty"`
	PayloadOff          string  `json:"payload_off,omitempty"`
	AvailabilityTopic   string  `json:"availability_topic,omitempty"`
	PayloadAvailable    string  `json:"payload_available,omitempty"`
	PayloadNotAvailable string  `json:"payload_not_available,omitempty"`
	Device              *Device `json:"device,omitempty"`
}

// Device groups the entities in Home Assistant
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// DiscoveryManager publishes the discovery configuration
type DiscoveryManager struct {
	broker Broker
	prefix string
}

// NewDiscoveryManager creates a manager for the configured discovery prefix
func NewDiscoveryManager(broker Broker, cfg config.HomeAssistantConfig) *DiscoveryManager {
	prefix := cfg.DiscoveryPrefix
	if prefix == "" {
		prefix = "homeassistant"
	}
	return &DiscoveryManager{broker: broker, prefix: prefix}
}

// Entities returns the discovery topic and payload of every entity
func (dm *DiscoveryManager) Entities() map[string]EntityConfig {
	device := &Device{
		Identifiers:  []string{NodeID},
		Name:         "Face Door Lock",
		Manufacturer: "face-door-lock",
		Model:        "Liveness verified lock",
	}
	avail := dm.broker.AvailabilityTopic()

	entity := func(e EntityConfig) EntityConfig {
		e.AvailabilityTopic = avail
		e.PayloadAvailable = "online"
		e.PayloadNotAvailable = "offline"
		e.Device = device
		return e
	}

	return map[string]EntityConfig{
		dm.topic(ComponentBinarySensor, "door"): entity(EntityConfig{
			Name:        "Door",
			UniqueID:    NodeID + "_door",
			StateTopic:  dm.broker.Topic("door", "state"),
			DeviceClass: "door",
			PayloadOn:   "OPEN",
			PayloadOff:  "LOCKED",
		}),
		dm.topic(ComponentBinarySensor, "unknown_present"): entity(EntityConfig{
			Name:        "Unknown person present",
			UniqueID:    NodeID + "_unknown_present",
			StateTopic:  dm.broker.Topic("unknown", "present"),
			DeviceClass: "occupancy",
			PayloadOn:   "ON",
			PayloadOff:  "OFF",
		}),
		dm.topic(ComponentSensor, "last_access"): entity(EntityConfig{
			Name:                "Last access",
			UniqueID:            NodeID + "_last_access",
			StateTopic:          dm.broker.Topic("last_access"),
			JSONAttributesTopic: dm.broker.Topic("last_access"),
			ValueTemplate:       "{{ value_json.identity }}",
			Icon:                "mdi:face-recognition",
		}),
		dm.topic(ComponentSensor, "unknown_alert"): entity(EntityConfig{
			Name:                "Last unknown person alert",
			UniqueID:            NodeID + "_unknown_alert",
			StateTopic:          dm.broker.Topic("events", "unknown_alert"),
			JSONAttributesTopic: dm.broker.Topic("events", "unknown_alert"),
			ValueTemplate:       "{{ value_json.time }}",
			DeviceClass:         "timestamp",
		}),
	}
}

// Register publishes all entity configurations
func (dm *DiscoveryManager) Register() error {
	for topic, e := range dm.Entities() {
		log.Infof("Registering Home Assistant entity: %s", e.Name)
		if err := dm.broker.PublishRetain(topic, e); err != nil {
			return fmt.Errorf("failed to publish discovery configuration: %w", err)
		}
	}
	return nil
}

func (dm *DiscoveryManager) topic(component, object string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", dm.prefix, component, NodeID, object)
}
