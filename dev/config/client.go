package config

const CLIENT_YML = `
api:
  baseUrl: "http://localhost:5000"
  timeoutSeconds: 15

realtime:
  brokerUrl: "tcp://localhost:1883"

# A fixed downtown-Toronto position, so alerts raised in dev mode carry a
# plausible location without real positioning hardware.
location:
  latitude: 43.6532
  longitude: -79.3832

agent:
  resyncSchedule: "30s"
  timeZone: "America/Toronto"
`
