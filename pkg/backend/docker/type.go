package docker

type Info struct {
	ID                string `json:"ID"`
	Containers        int    `json:"Containers"`
	ContainersRunning int    `json:"ContainersRunning"`
	ContainersPaused  int    `json:"ContainersPaused"`
	ContainersStopped int    `json:"ContainersStopped"`
	ServerVersion     string `json:"ServerVersion"`
}

// ContainerState is the State object of `docker inspect`.
type ContainerState struct {
	Status     string `json:"Status"`
	Running    bool   `json:"Running"`
	Restarting bool   `json:"Restarting"`
	Dead       bool   `json:"Dead"`
	ExitCode   int    `json:"ExitCode"`
}

type ContainerJSON struct {
	ID    string          `json:"Id"`
	Name  string          `json:"Name"`
	State *ContainerState `json:"State"`
}
