package tasks

// TriggerInterface is the lifecycle the main application drives.
//
//	trigger, err := NewTrigger(cfg.Schedule, scheduler, incrementalMode, DefaultStartupDelay)
//	trigger.Start()
//	defer trigger.Stop()
type TriggerInterface interface {
	Start()
	Stop()
}
